package cmd

import (
	"github.com/shouni/go-prompt-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// judgeCmd は、生成済みプロンプトの審査・強化のみを実行するのだ。
var judgeCmd = &cobra.Command{
	Use:   "judge",
	Short: "生プロンプトをAI審査にかけて承認済みファイルを作るのだ。",
	Long: `テーマ要件と照明スタイルに照らしてプロンプトを審査するのだ。
不合格なら強化版を入力にして上限回数まで磨き直し、合格したものだけを
承認済みファイルとして保存するのだよ。--theme を省略したときは
フォルダ名とファイル名からテーマを自動判定するのだ。`,
	RunE: judgeCommand,
}

func judgeCommand(cmd *cobra.Command, args []string) error {
	return runSingleStage(cmd, pipeline.StageJudge)
}
