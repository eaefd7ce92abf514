package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-prompt-pipeline/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は全サブコマンドで共有する実行時オプションなのだ。
var opts config.PipelineOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- セッションと出力先 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Theme, "theme", "t", "", "プロンプト生成のテーマ名なのだ（例: wildlife）。")
	rootCmd.PersistentFlags().StringVarP(&opts.SessionID, "session-id", "s", "", "既存セッションのID（未指定なら新規発番なのだ）。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "成果物を保存するベースディレクトリなのだ。")

	// --- ステージごとのフォルダ上書き ---
	rootCmd.PersistentFlags().StringVar(&opts.PromptsDir, "prompts-dir", "", "生プロンプトの保存先（既定は output-dir 配下なのだ）。")
	rootCmd.PersistentFlags().StringVar(&opts.ApprovedDir, "approved-dir", "", "承認済みプロンプトの保存先なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ReformattedDir, "reformatted-dir", "", "再整形済みプロンプトの保存先なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImagesOutDir, "images-dir", "", "生成画像の保存先なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "使用する Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "使用する画像生成モデル名なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.VariationCount, "variations", "v", config.DefaultVariationCount, "バリエーション生成の元にする base プロンプト数なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxIterations, "max-iterations", config.DefaultMaxIterations, "審査・強化ループの最大回数なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxRetries, "max-retries", config.DefaultMaxRetries, "レート制限時の最大リトライ回数なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.JudgeTimeout, "judge-timeout", config.DefaultJudgeTimeout, "審査1回あたりのタイムアウトなのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().BoolVar(&opts.StopOnError, "stop-on-error", false, "ステージが失敗したら以降を中止するのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.SkipDatabase, "no-database", false, "トラッキングDBを使わずファイルのみで実行するのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// loadPipelineConfig は環境変数とフラグから実行設定を組み立てるのだ。
func loadPipelineConfig() *config.Config {
	cfg := config.LoadConfig()
	opts.Normalize(cfg)
	cfg.Options = opts
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"prompt-pipeline",
		addAppFlags,
		preRunAppE,
		runCmd,
		createCmd,
		judgeCmd,
		reformatCmd,
		generateCmd,
	)
}
