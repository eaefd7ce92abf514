package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-prompt-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、再整形済みプロンプトからの画像生成のみを実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "再整形済みプロンプトを画像生成APIへ送って画像を保存するのだ。",
	Long: `再整形済みの一行プロンプトを画像生成モデルへ送信し、
出来上がった画像をダウンロードして保存するのだ。
画像とプロンプトの対応はログファイルとデータベースに記録されるのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	// 画像生成にはAPIトークンが必須なのだ
	if os.Getenv("GENERATOR_API_TOKEN") == "" {
		return fmt.Errorf("エラー: 環境変数 GENERATOR_API_TOKEN が設定されていません。画像生成APIの利用には必須なのだ")
	}
	return runSingleStage(cmd, pipeline.StageGenerate)
}
