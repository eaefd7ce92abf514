package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/imagegen"
	"github.com/shouni/go-prompt-pipeline/internal/runner"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/theme"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"google.golang.org/genai"
)

// BuildCreateRunner はプロンプト生成ステージの Runner を構築します。
func BuildCreateRunner(appCtx *AppContext) *runner.PromptCreateRunner {
	text := runner.NewGeminiTextGenerator(appCtx.aiClient, appCtx.Options.AIModel)
	return runner.NewPromptCreateRunner(
		text, appCtx.Registry, appCtx.Store, appCtx.Writer, appCtx.Options, appCtx.Logger)
}

// BuildJudgeRunner は審査・強化ステージの Runner を構築します。
func BuildJudgeRunner(appCtx *AppContext) *runner.PromptJudgeRunner {
	text := runner.NewGeminiTextGenerator(appCtx.aiClient, appCtx.Options.AIModel)
	return runner.NewPromptJudgeRunner(
		text, appCtx.Registry, appCtx.Store, appCtx.Reader, appCtx.Writer, appCtx.Options, appCtx.Logger)
}

// BuildReformatRunner は再整形ステージの Runner を構築します。
func BuildReformatRunner(appCtx *AppContext) *runner.PromptReformatRunner {
	return runner.NewPromptReformatRunner(
		appCtx.Store, appCtx.Reader, appCtx.Writer, appCtx.Options, appCtx.Logger)
}

// BuildImageRunner は画像生成ステージの Runner を構築します。
// 画像APIトークンがなければここでエラーにするのだ。
func BuildImageRunner(appCtx *AppContext) (*runner.ImageGenerateRunner, error) {
	if appCtx.Config.GeneratorAPIToken == "" {
		return nil, fmt.Errorf("GENERATOR_API_TOKEN が設定されていないのだ")
	}
	backend, err := imagegen.NewReplicateBackend(
		appCtx.Config.GeneratorAPIToken, appCtx.Options.ImageModel, appCtx.Logger)
	if err != nil {
		return nil, err
	}
	downloader := imagegen.NewDownloader(appCtx.httpClient, config.DefaultDownloadPause, appCtx.Logger)
	return runner.NewImageGenerateRunner(
		backend, downloader, appCtx.Store, appCtx.Reader, appCtx.Options, appCtx.Logger), nil
}

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// OpenStore はトラッキングDBを開きます。
// --no-database 指定時や接続失敗時は nil を返し、ファイルのみモードで続行するのだ。
func OpenStore(cfg *config.Config, logger *slog.Logger) *store.Store {
	if cfg.Options.SkipDatabase {
		logger.Info("DBなしのファイルのみモードで実行するのだ")
		return nil
	}
	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Warn("トラッキングDBを開けなかったのでファイルのみモードで続行するのだ",
			"path", cfg.DatabasePath, "error", err)
		return nil
	}
	return st
}

// SetupAppContext は、AIクライアント・入出力・テーマレジストリ・DBを初期化して
// アプリケーションコンテキストを組み立てるのだ。
func SetupAppContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AppContext, error) {
	httpClient := httpkit.New(config.DefaultHTTPTimeout)
	aiClient, err := InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	// 審査ステージはテーマ定義が欠けていても汎用設定で続行できるようにするのだ
	registry := theme.NewRegistry(cfg.ThemesDir, true, logger)
	st := OpenStore(cfg, logger)

	appCtx := NewAppContext(cfg, aiClient, httpClient, registry, st, reader, writer, logger)
	return &appCtx, nil
}
