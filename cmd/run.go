package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/shouni/go-prompt-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// runCmd は、プロンプト生成から画像化までの全ステージを一気に実行するのだ。
// 各ステージは自分自身のバイナリのサブコマンドを子プロセスとして呼ぶのだ。
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "生成→審査→再整形→画像化の全ステージを順に実行するのだ。",
	Long: `テーマに沿ったプロンプトをAIに生成させ、審査・強化し、
画像生成API向けに再整形して、最後に画像をダウンロードするのだ。
各ステージは子プロセスとして直列に起動され、成果物はデータベースで
相関づけられるのだよ。--stages や --skip-* で実行範囲を絞れるのだ。`,
	RunE: runCommand,
}

var (
	runStages       string
	runSkipCreate   bool
	runSkipJudge    bool
	runSkipReformat bool
	runSkipGenerate bool
)

func init() {
	runCmd.Flags().StringVar(&runStages, "stages", "", "実行するステージのカンマ区切り指定なのだ（例: create,judge）。")
	runCmd.Flags().BoolVar(&runSkipCreate, "skip-create", false, "プロンプト生成ステージを飛ばすのだ。")
	runCmd.Flags().BoolVar(&runSkipJudge, "skip-judge", false, "審査ステージを飛ばすのだ。")
	runCmd.Flags().BoolVar(&runSkipReformat, "skip-reformat", false, "再整形ステージを飛ばすのだ。")
	runCmd.Flags().BoolVar(&runSkipGenerate, "skip-generate", false, "画像生成ステージを飛ばすのだ。")
}

func runCommand(cmd *cobra.Command, args []string) error {
	stages, err := pipeline.SelectStages(runStages, map[string]bool{
		pipeline.StageCreate:   runSkipCreate,
		pipeline.StageJudge:    runSkipJudge,
		pipeline.StageReformat: runSkipReformat,
		pipeline.StageGenerate: runSkipGenerate,
	})
	if err != nil {
		return err
	}
	// 審査以降はテーマを自動判定できるが、生成だけはテーマがないと始まらないのだ
	if opts.Theme == "" && slices.Contains(stages, pipeline.StageCreate) {
		return fmt.Errorf("テーマ（--theme）を指定してほしいのだ")
	}

	// Ctrl+C で進行中のステージを安全に打ち切るのだ
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadPipelineConfig()
	slog.Info("画像プロンプトパイプラインを起動するのだ！",
		"theme", cfg.Options.Theme,
		"session_id", cfg.Options.SessionID,
		"text_model", cfg.Options.AIModel,
		"image_model", cfg.Options.ImageModel,
		"output", cfg.Options.OutputDir)

	result, err := pipeline.Supervise(ctx, cfg, stages)
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	for _, stage := range stages {
		attrs := []any{"stage", stage, "status", result.StageStatus[stage]}
		if stageErr := result.StageErrors[stage]; stageErr != nil {
			attrs = append(attrs, "error", stageErr)
		}
		slog.Info("ステージ結果なのだ", attrs...)
	}
	if result.Summary != nil {
		slog.Info("セッション集計なのだ",
			"session_id", result.SessionID,
			"total_prompts", result.Summary.TotalPrompts,
			"approved_prompts", result.Summary.ApprovedPrompts,
			"reformatted_prompts", result.Summary.ReformattedPrompts,
			"successful_images", result.Summary.SuccessfulImages)
	}

	if ctx.Err() != nil {
		slog.Warn("割り込みで中断されたのだ", "session_id", result.SessionID)
		os.Exit(130)
	}
	if !result.AllSucceeded {
		return fmt.Errorf("一部のステージが失敗したのだ（セッション: %s）", result.SessionID)
	}

	slog.Info("すべてのステージが完了したのだ！", "session_id", result.SessionID)
	return nil
}
