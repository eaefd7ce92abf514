package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/prompt"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/parser"
	"github.com/shouni/go-prompt-pipeline/pkg/theme"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// JudgeResult は審査ステージの実行結果なのだ。
type JudgeResult struct {
	SessionID     string
	Evaluated     int
	Approved      int
	Failed        int
	ApprovedFiles []string
}

// PromptJudgeRunner は、生プロンプトを審査・強化して承認済みファイルを作るのだ。
// 不合格の応答は強化版を次のイテレーションの入力にして、上限まで磨き続けるのだ。
type PromptJudgeRunner struct {
	text     TextGenerator
	registry *theme.Registry
	store    *store.Store // nilならファイルのみモード
	reader   remoteio.InputReader
	writer   remoteio.OutputWriter
	opts     config.PipelineOptions
	logger   *slog.Logger
}

// NewPromptJudgeRunner は、PromptJudgeRunnerの新しいインスタンスを生成して返すのだ。
func NewPromptJudgeRunner(
	text TextGenerator,
	registry *theme.Registry,
	st *store.Store,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	opts config.PipelineOptions,
	logger *slog.Logger,
) *PromptJudgeRunner {
	return &PromptJudgeRunner{
		text:     text,
		registry: registry,
		store:    st,
		reader:   reader,
		writer:   writer,
		opts:     opts,
		logger:   logger,
	}
}

// Run は対象セッションの生プロンプト群を1件ずつ審査するのだ。
// 1件の失敗で全体は止めず、最後に集計を返すのだ。
func (r *PromptJudgeRunner) Run(ctx context.Context) (*JudgeResult, error) {
	allFiles, err := listPromptFiles(r.opts.PromptsDir)
	if err != nil {
		return nil, err
	}
	if len(allFiles) == 0 {
		return nil, fmt.Errorf("審査対象のプロンプトファイルが %s に見つからないのだ", r.opts.PromptsDir)
	}

	var dbNames []string
	if r.store != nil {
		dbNames, err = r.store.FileNamesForSession(ctx, r.opts.SessionID)
		if err != nil {
			r.logger.Warn("セッションのファイル名一覧の取得に失敗したのだ", "error", err)
		}
	}
	targets := selectSessionFiles(allFiles, dbNames, r.opts.SessionID, r.logger)

	// 承認ファイルのトレーラーと審査プロンプトが判定済みテーマを参照するのだ
	r.opts.Theme = r.resolveTheme(allFiles)
	cfg, err := r.registry.Load(r.opts.Theme)
	if err != nil {
		return nil, err
	}

	result := &JudgeResult{SessionID: r.opts.SessionID}
	for _, fileName := range targets {
		approvedPath, err := r.judgeFile(ctx, cfg, fileName)
		result.Evaluated++
		if err != nil {
			r.logger.Error("審査中にエラーが起きたのだ", "file_name", fileName, "error", err)
			result.Failed++
			continue
		}
		if approvedPath == "" {
			result.Failed++
			continue
		}
		result.Approved++
		result.ApprovedFiles = append(result.ApprovedFiles, approvedPath)
	}

	if r.store != nil {
		if err := r.store.UpdateSessionStatus(ctx, r.opts.SessionID, domain.SessionRunning,
			map[string]any{"total_prompts_approved": result.Approved}); err != nil {
			r.logger.Warn("セッションカウンターの更新に失敗したのだ", "error", err)
		}
	}

	r.logger.Info("審査ステージが完了したのだ",
		"evaluated", result.Evaluated, "approved", result.Approved, "failed", result.Failed)
	return result, nil
}

// resolveTheme は --theme 未指定のときにテーマを自動判定するのだ。
// 既知のテーマ名の語をフォルダ名、次にファイル名と突き合わせるのだよ。
func (r *PromptJudgeRunner) resolveTheme(files []string) string {
	if r.opts.Theme != "" {
		return r.opts.Theme
	}
	known, err := r.registry.List()
	if err != nil {
		r.logger.Warn("テーマ一覧の取得に失敗したのだ", "error", err)
	}
	detected := detectThemeName(known, filepath.Base(r.opts.PromptsDir), files)
	r.logger.Info("テーマを自動判定したのだ", "theme", detected)
	return detected
}

// detectThemeName はフォルダ名かファイル名に語が現れる最初の既知テーマを返すのだ。
// どれにも当たらなければ default に落ちるのだ。
func detectThemeName(known []string, folder string, files []string) string {
	folder = strings.ToLower(folder)
	for _, name := range known {
		if containsThemeWord(folder, name) {
			return name
		}
	}
	for _, file := range files {
		lower := strings.ToLower(file)
		for _, name := range known {
			if containsThemeWord(lower, name) {
				return name
			}
		}
	}
	return "default"
}

func containsThemeWord(haystack, themeName string) bool {
	for _, word := range strings.Fields(strings.ReplaceAll(themeName, "_", " ")) {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

// judgeFile は1ファイルをイテレーション上限まで審査するのだ。
// 承認なら承認済みファイルのパスを、不承認のまま終わったら空文字を返すのだ。
func (r *PromptJudgeRunner) judgeFile(ctx context.Context, cfg *theme.Config, fileName string) (string, error) {
	currentPrompt, err := readFile(ctx, r.reader, filepath.Join(r.opts.PromptsDir, fileName))
	if err != nil {
		return "", err
	}
	currentPrompt = strings.TrimSpace(currentPrompt)
	if currentPrompt == "" {
		return "", fmt.Errorf("プロンプトファイルが空なのだ: %s", fileName)
	}

	// DB行と紐づかないファイルはファイルのみで審査を続けるのだ
	var promptID int64
	if r.store != nil {
		promptID, err = r.store.FindPromptIDByFileName(ctx, r.opts.SessionID, fileName)
		if err != nil {
			r.logger.Warn("プロンプトIDの検索に失敗したのだ", "file_name", fileName, "error", err)
		}
		if promptID == 0 {
			r.logger.Warn("DBに記録のないファイルなのでファイルのみで審査するのだ", "file_name", fileName)
		}
	}

	lighting := cfg.DefaultLightingStyle()
	for iteration := 1; iteration <= r.opts.MaxIterations; iteration++ {
		verdict, elapsed, err := r.evaluateOnce(ctx, cfg, lighting, currentPrompt)
		if err != nil {
			// タイムアウトや呼び出し失敗でもイテレーションは消費して続行するのだ
			r.logger.Warn("審査呼び出しに失敗したのだ",
				"file_name", fileName, "iteration", iteration, "error", err)
			continue
		}

		r.logger.Info("審査結果が出たのだ",
			"file_name", fileName,
			"iteration", iteration,
			"score", verdict.Score,
			"method", verdict.Method,
			"elapsed", elapsed.Round(time.Millisecond))

		if verdict.Score == "pass" {
			approvedPath, err := r.saveApproved(ctx, cfg, fileName, promptID, iteration, currentPrompt, verdict, elapsed)
			if err != nil {
				return "", err
			}
			return approvedPath, nil
		}

		r.recordEvaluation(ctx, cfg, promptID, iteration, currentPrompt, verdict, elapsed, false, "")

		// 強化版を次のイテレーションの入力にするのだ
		if strings.TrimSpace(verdict.EnhancedPrompt) != "" {
			currentPrompt = verdict.EnhancedPrompt
		}
	}

	if r.store != nil && promptID != 0 {
		if err := r.store.UpdatePromptStatus(ctx, promptID, domain.PromptFailedEvaluation); err != nil {
			r.logger.Warn("プロンプト状態の更新に失敗したのだ", "prompt_id", promptID, "error", err)
		}
	}
	r.logger.Warn("イテレーション上限まで承認されなかったのだ",
		"file_name", fileName, "max_iterations", r.opts.MaxIterations)
	return "", nil
}

// evaluateOnce は審査モデルを1回呼び出して、構造化された判定を返すのだ。
func (r *PromptJudgeRunner) evaluateOnce(
	ctx context.Context,
	cfg *theme.Config,
	lighting theme.LightingStyle,
	currentPrompt string,
) (parser.Verdict, time.Duration, error) {
	judgePrompt, err := prompt.BuildJudgePrompt(prompt.JudgeData{
		Theme:                r.opts.Theme,
		ThemeNotes:           cfg.ThemeSpecificNotes,
		LightingName:         lighting.Name,
		LightingInstructions: lighting.Instructions,
		Prompt:               currentPrompt,
	})
	if err != nil {
		return parser.Verdict{}, 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.opts.JudgeTimeout)
	defer cancel()

	started := time.Now()
	raw, err := retryWithRateLimit(callCtx, r.logger, r.opts.MaxRetries, func() (string, error) {
		return r.text.Generate(callCtx, judgePrompt)
	})
	elapsed := time.Since(started)
	if err != nil {
		return parser.Verdict{}, elapsed, err
	}
	return parser.ParseVerdict(raw, currentPrompt), elapsed, nil
}

// saveApproved は承認済みファイルを書き出し、DBの評価行とプロンプト状態を確定させるのだ。
func (r *PromptJudgeRunner) saveApproved(
	ctx context.Context,
	cfg *theme.Config,
	fileName string,
	promptID int64,
	iteration int,
	originalPrompt string,
	verdict parser.Verdict,
	elapsed time.Duration,
) (string, error) {
	approvedName := "approved_" + fileName
	approvedPath := filepath.Join(r.opts.ApprovedDir, approvedName)

	evalID := r.recordEvaluation(ctx, cfg, promptID, iteration, originalPrompt, verdict, elapsed, true, approvedPath)

	var b strings.Builder
	b.WriteString("APPROVED FINAL PROMPT:\n")
	b.WriteString(strings.TrimSpace(verdict.EnhancedPrompt))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Round: %d\n", iteration)
	fmt.Fprintf(&b, "Theme: %s\n", r.opts.Theme)
	if evalID != 0 {
		fmt.Fprintf(&b, "Database evaluation_id: %d\n", evalID)
	}
	if promptID != 0 {
		fmt.Fprintf(&b, "Database prompt_id: %d\n", promptID)
	}

	if err := writeFile(ctx, r.writer, approvedPath, b.String()); err != nil {
		return "", err
	}

	if r.store != nil && promptID != 0 {
		if err := r.store.UpdatePromptStatus(ctx, promptID, domain.PromptApproved); err != nil {
			r.logger.Warn("プロンプト状態の更新に失敗したのだ", "prompt_id", promptID, "error", err)
		}
	}
	return approvedPath, nil
}

// recordEvaluation は審査1回分をDBへ記録するのだ。DBなしか記録失敗でも審査は続くのだ。
// テーマルールによる機械的な審査結果も欠落要素・強み領域として添えるのだ。
func (r *PromptJudgeRunner) recordEvaluation(
	ctx context.Context,
	cfg *theme.Config,
	promptID int64,
	iteration int,
	originalPrompt string,
	verdict parser.Verdict,
	elapsed time.Duration,
	approved bool,
	approvedPath string,
) int64 {
	if r.store == nil || promptID == 0 {
		return 0
	}
	local := theme.Evaluate(cfg, verdict.EnhancedPrompt)
	var strengths []string
	for category, score := range local.DetailedScores {
		if score >= 1.0 {
			strengths = append(strengths, category)
		}
	}
	evalID, err := r.store.InsertEvaluation(ctx, &domain.Evaluation{
		PromptID:         promptID,
		SessionID:        r.opts.SessionID,
		IterationNumber:  iteration,
		OriginalPrompt:   originalPrompt,
		RefinedPrompt:    verdict.EnhancedPrompt,
		Score:            verdict.Score,
		Feedback:         verdict.Reasoning,
		MissingElements:  local.MissingElements,
		StrengthAreas:    strengths,
		ProcessingTime:   elapsed.Seconds(),
		Approved:         approved,
		ApprovedFilePath: approvedPath,
	})
	if err != nil {
		r.logger.Warn("審査結果のDB記録に失敗したのだ", "prompt_id", promptID, "error", err)
		return 0
	}
	return evalID
}
