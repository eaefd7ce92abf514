package domain

import "time"

// セッションの状態を表す定数なのだ。
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// プロンプトの審査状態を表す定数なのだ。
const (
	PromptPending          = "pending"
	PromptApproved         = "approved"
	PromptFailedEvaluation = "failed_evaluation"
)

// 画像生成の進行状態を表す定数なのだ。
const (
	ImagePending   = "pending"
	ImageCompleted = "completed"
	ImageFailed    = "failed"
)

// Session は1回のパイプライン実行全体を表し、全ステージの成果物を相関させるのだ。
type Session struct {
	ID                    string
	Theme                 string
	Timestamp             time.Time
	BaseOutputDir         string
	Status                string
	TotalPromptsGenerated int
	TotalPromptsApproved  int
	TotalImagesGenerated  int
}

// Prompt は生成された1件の生プロンプトとそのメタデータを保持します。
type Prompt struct {
	ID             int64
	SessionID      string
	Theme          string
	Text           string
	Type           string // "base" または "variation"
	ApproachType   string
	VariationStyle string
	FileName       string
	FilePath       string
	CharacterCount int
	Status         string
	CreatedAt      time.Time
}

// Evaluation は審査の1イテレーションの結果を保持します。
// approved=true の行だけが後続ステージへ引き継がれるのだ。
type Evaluation struct {
	ID               int64
	PromptID         int64
	SessionID        string
	IterationNumber  int
	OriginalPrompt   string
	RefinedPrompt    string
	Score            string
	Feedback         string
	MissingElements  []string
	StrengthAreas    []string
	ProcessingTime   float64
	Approved         bool
	ApprovedFilePath string
}

// ReformattedPrompt は、承認済みプロンプトから抽出した
// 画像ジェネレーター向けの短縮テキストを保持します。
type ReformattedPrompt struct {
	ID               int64
	EvaluationID     int64
	PromptID         int64
	SessionID        string
	OriginalDetailed string
	Optimized        string
	CharCountBefore  int
	CharCountAfter   int
	CompressionRatio float64
	FileName         string
	FilePath         string
}

// GeneratedImage は画像生成APIへの1リクエストとその結果を保持します。
type GeneratedImage struct {
	ID            int64
	ReformattedID int64
	PromptID      int64
	SessionID     string
	TaskID        string
	FileName      string
	FilePath      string
	PromptUsed    string
	APIResponse   string
	Status        string
	Timestamp     time.Time
	URL           string
	FileSizeBytes int64
	Width         int
	Height        int
	ErrorMessage  string
}

// SessionSummary はセッション全体のステージ別集計なのだ。
type SessionSummary struct {
	Session            Session
	TotalPrompts       int
	ApprovedPrompts    int
	ReformattedPrompts int
	TotalImages        int
	SuccessfulImages   int
}
