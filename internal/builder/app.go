package builder

import (
	"log/slog"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/theme"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config   *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options  config.PipelineOptions // Optionsは、コマンドラインから渡された実行時の設定です（セッションID、テーマなど）。
	Registry *theme.Registry        // Registryは、テーマ定義の読み込みとキャッシュを担当します。
	Store    *store.Store           // Storeは、トラッキングDBです。nilの場合はファイルのみモードで動作します。
	Reader   remoteio.InputReader   // Readerは、プロンプトファイルの読み込みに使用する入力元です。
	Writer   remoteio.OutputWriter  // Writerは、生成された内容を保存するための出力先です。
	Logger   *slog.Logger           // Loggerは、全コンポーネントで共有する構造化ロガーです。
	aiClient   gemini.GenerativeModel  // aiClient はGeminiの通信に使う共通クライアント
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	aiClient gemini.GenerativeModel,
	httpClient httpkit.ClientInterface,
	registry *theme.Registry,
	st *store.Store,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	logger *slog.Logger,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		Registry:   registry,
		Store:      st,
		Reader:     reader,
		Writer:     writer,
		Logger:     logger,
		aiClient:   aiClient,
		httpClient: httpClient,
	}
}
