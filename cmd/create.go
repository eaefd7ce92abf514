package cmd

import (
	"fmt"

	"github.com/shouni/go-prompt-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// createCmd は、生プロンプトの一括生成のみを実行するのだ。
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "テーマに沿った生プロンプトだけを生成して保存するのだ。",
	Long: `4つのアプローチ（躍動・広角・接写・映画的）で base プロンプトを生成し、
指定があればバリエーションも作るのだ。審査や画像化は行わないのだよ。`,
	RunE: createCommand,
}

func createCommand(cmd *cobra.Command, args []string) error {
	if opts.Theme == "" {
		return fmt.Errorf("テーマ（--theme）を指定してほしいのだ")
	}
	return runSingleStage(cmd, pipeline.StageCreate)
}

// runSingleStage は単一ステージの実行と結果判定をまとめるのだ。
func runSingleStage(cmd *cobra.Command, stage string) error {
	cfg := loadPipelineConfig()
	result, err := pipeline.ExecuteStages(cmd.Context(), cfg, []string{stage})
	if err != nil {
		return fmt.Errorf("ステージ実行中にエラーが発生したのだ: %w", err)
	}
	if !result.AllSucceeded {
		return fmt.Errorf("ステージ %s が失敗したのだ: %v", stage, result.StageErrors[stage])
	}
	return nil
}
