package cmd

import (
	"github.com/shouni/go-prompt-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// reformatCmd は、承認済みプロンプトの再整形のみを実行するのだ。
var reformatCmd = &cobra.Command{
	Use:   "reformat",
	Short: "承認済みプロンプトを画像生成API向けの一行テキストへ変換するのだ。",
	Long: `承認済みファイルから本文だけを取り出し、見出しや評価トレーラーを
削ぎ落とした一行プロンプトとして保存し直すのだ。`,
	RunE: reformatCommand,
}

func reformatCommand(cmd *cobra.Command, args []string) error {
	return runSingleStage(cmd, pipeline.StageReformat)
}
