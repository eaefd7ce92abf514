package config

import (
	"path/filepath"
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel          = "gemini-3-flash-preview"
	DefaultImageModel     = "black-forest-labs/flux-krea-dev"
	DefaultDatabaseFile   = "image_pipeline.db"
	DefaultThemesDir      = "configs/themes"
	DefaultOutputDir      = "output"
	DefaultMaxIterations  = 3
	DefaultMaxRetries     = 3
	DefaultJudgeTimeout   = 120 * time.Second
	DefaultHTTPTimeout    = 60 * time.Second
	DefaultDownloadPause  = 1 * time.Second
	DefaultVariationCount = 0

	// ステージごとの出力フォルダ名なのだ
	RawPromptsDir         = "generator_prompts_raw"
	ApprovedPromptsDir    = "approved_prompts"
	ReformattedPromptsDir = "generator_prompts"
	ImagesDir             = "generator_pics"
)

// Config はアプリケーション全体の環境設定（APIキーや既定パス）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey      string
	GeneratorAPIToken string
	GeminiModel       string
	ImageModel        string
	DatabasePath      string
	ThemesDir         string

	Options PipelineOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		GeneratorAPIToken: envutil.GetEnv("GENERATOR_API_TOKEN", ""),
		GeminiModel:       envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		ImageModel:        envutil.GetEnv("IMAGE_GENERATOR_MODEL", DefaultImageModel),
		DatabasePath:      envutil.GetEnv("PIPELINE_DATABASE", DefaultDatabaseFile),
		ThemesDir:         envutil.GetEnv("THEMES_DIR", DefaultThemesDir),
	}
	return cfg
}

// PipelineOptions は CLI フラグから渡される実行時のパラメータなのだ。
type PipelineOptions struct {
	// セッションと出力先
	SessionID string // --session-id
	Theme     string // --theme
	OutputDir string // --output-dir

	// ステージごとのフォルダ上書き
	PromptsDir     string // --prompts-dir
	ApprovedDir    string // --approved-dir
	ReformattedDir string // --reformatted-dir
	ImagesOutDir   string // --images-dir

	// 生成・審査の挙動設定
	AIModel        string // --model: テキスト生成用のGeminiモデル
	ImageModel     string // --image-model: 画像生成用のモデル
	VariationCount int    // --variations: バリエーション生成の元にする base プロンプト数
	MaxIterations  int    // --max-iterations
	MaxRetries     int    // --max-retries

	// 実行制御
	JudgeTimeout time.Duration // --judge-timeout
	StopOnError  bool          // --stop-on-error
	SkipDatabase bool          // --no-database: DBなしのファイルのみモード
}

// NewSessionID は実行開始時刻から新しいセッションIDを発番するのだ。
func NewSessionID(now time.Time) string {
	return "session_" + now.Format("20060102_150405")
}

// Normalize は未指定のオプションに既定値を補うのだ。
// ステージフォルダは出力ディレクトリ配下の固定名へ寄せるのだ。
func (o *PipelineOptions) Normalize(cfg *Config) {
	if o.SessionID == "" {
		o.SessionID = NewSessionID(time.Now())
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.PromptsDir == "" {
		o.PromptsDir = filepath.Join(o.OutputDir, RawPromptsDir)
	}
	if o.ApprovedDir == "" {
		o.ApprovedDir = filepath.Join(o.OutputDir, ApprovedPromptsDir)
	}
	if o.ReformattedDir == "" {
		o.ReformattedDir = filepath.Join(o.OutputDir, ReformattedPromptsDir)
	}
	if o.ImagesOutDir == "" {
		o.ImagesOutDir = filepath.Join(o.OutputDir, ImagesDir)
	}
	if o.AIModel == "" {
		o.AIModel = cfg.GeminiModel
	}
	if o.ImageModel == "" {
		o.ImageModel = cfg.ImageModel
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.JudgeTimeout <= 0 {
		o.JudgeTimeout = DefaultJudgeTimeout
	}
}
