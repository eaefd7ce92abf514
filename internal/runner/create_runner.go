package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/prompt"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/theme"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// 1つの base プロンプトにつき生成するバリエーションの数なのだ。
const variationsPerBase = 1

// CreateResult は生成ステージの実行結果なのだ。
type CreateResult struct {
	SessionID  string
	Theme      string
	TotalSaved int
}

// generatedPrompt は保存前のプロンプト1件なのだ。
type generatedPrompt struct {
	text           string
	promptType     string
	approach       string
	variationStyle string
}

// PromptCreateRunner は、テーマに沿った生プロンプトを一括生成する核となる構造体なのだ。
type PromptCreateRunner struct {
	text     TextGenerator        // テキスト補完の呼び出し面
	registry *theme.Registry      // テーマ定義のレジストリ
	store    *store.Store         // トラッキングDB (nilならファイルのみモード)
	writer   remoteio.OutputWriter // ローカルやGCSへの書き出し
	opts     config.PipelineOptions
	logger   *slog.Logger
}

// NewPromptCreateRunner は、PromptCreateRunnerの新しいインスタンスを生成して返すのだ。
func NewPromptCreateRunner(
	text TextGenerator,
	registry *theme.Registry,
	st *store.Store,
	writer remoteio.OutputWriter,
	opts config.PipelineOptions,
	logger *slog.Logger,
) *PromptCreateRunner {
	return &PromptCreateRunner{
		text:     text,
		registry: registry,
		store:    st,
		writer:   writer,
		opts:     opts,
		logger:   logger,
	}
}

// Run は、テーマ検証、base 4種とバリエーションの生成、ファイルとDBへの保存を一気に行うのだ。
func (r *PromptCreateRunner) Run(ctx context.Context) (*CreateResult, error) {
	themeName := r.opts.Theme

	// このステージではテーマ定義が実在しなければエラーなのだ (汎用フォールバックは使わない)
	if !r.registry.Exists(themeName) {
		return nil, fmt.Errorf("テーマ '%s' の定義が見つからないのだ: %s に配置してほしいのだ",
			themeName, config.DefaultThemesDir)
	}
	if _, err := r.registry.Load(themeName); err != nil {
		return nil, err
	}

	if err := r.ensureSession(ctx, themeName); err != nil {
		return nil, err
	}

	basePrompts := r.generateBasePrompts(ctx, themeName)
	variations := r.generateVariations(ctx, basePrompts)
	all := append(basePrompts, variations...)
	if len(all) == 0 {
		return nil, fmt.Errorf("プロンプトを1件も生成できなかったのだ")
	}

	saved, err := r.savePrompts(ctx, themeName, all)
	if err != nil {
		return nil, err
	}

	if r.store != nil {
		if err := r.store.UpdateSessionStatus(ctx, r.opts.SessionID, domain.SessionRunning,
			map[string]any{"total_prompts_generated": saved}); err != nil {
			r.logger.Warn("セッションカウンターの更新に失敗したのだ", "error", err)
		}
	}

	return &CreateResult{SessionID: r.opts.SessionID, Theme: themeName, TotalSaved: saved}, nil
}

// ensureSession はセッション行がなければ作るのだ。オーケストレーター経由なら既にあるのだ。
func (r *PromptCreateRunner) ensureSession(ctx context.Context, themeName string) error {
	if r.store == nil {
		return nil
	}
	sess, err := r.store.GetSession(ctx, r.opts.SessionID)
	if err != nil {
		return err
	}
	if sess != nil {
		return nil
	}
	return r.store.CreateSession(ctx, &domain.Session{
		ID:            r.opts.SessionID,
		Theme:         themeName,
		Timestamp:     time.Now(),
		BaseOutputDir: r.opts.OutputDir,
	})
}

// generateBasePrompts は4つのアプローチを固定順で回すのだ。
// 外部呼び出しが失敗したアプローチは落とすだけで、この層ではリトライしないのだ。
func (r *PromptCreateRunner) generateBasePrompts(ctx context.Context, themeName string) []generatedPrompt {
	var prompts []generatedPrompt
	for _, approach := range prompt.Approaches {
		data := prompt.ApproachData{
			Theme:      themeName,
			Mood:       pick(prompt.MoodPool),
			Scene:      pick(prompt.ScenePool),
			Lighting:   pick(prompt.LightingPool),
			Atmosphere: pick(prompt.AtmospherePool),
			Detail:     pick(prompt.AtmospherePool),
		}
		promptText, err := prompt.BuildApproachPrompt(approach, data)
		if err != nil {
			r.logger.Warn("アプローチテンプレートの展開に失敗したのだ", "approach", approach, "error", err)
			continue
		}
		result, err := r.text.Generate(ctx, promptText)
		if err != nil {
			r.logger.Warn("base プロンプトの生成に失敗したのでスキップするのだ", "approach", approach, "error", err)
			continue
		}
		prompts = append(prompts, generatedPrompt{
			text:       result,
			promptType: "base",
			approach:   approach,
		})
	}
	return prompts
}

// generateVariations は先頭 N 件の base からバリエーションを作るのだ。
func (r *PromptCreateRunner) generateVariations(ctx context.Context, basePrompts []generatedPrompt) []generatedPrompt {
	basesToVary := r.opts.VariationCount
	if basesToVary > len(basePrompts) {
		basesToVary = len(basePrompts)
	}

	var variations []generatedPrompt
	for _, base := range basePrompts[:basesToVary] {
		for _, style := range prompt.VariationStyles[:variationsPerBase] {
			promptText, err := prompt.BuildVariationPrompt(style, prompt.VariationData{Original: base.text})
			if err != nil {
				r.logger.Warn("バリエーションテンプレートの展開に失敗したのだ", "style", style, "error", err)
				continue
			}
			result, err := r.text.Generate(ctx, promptText)
			if err != nil {
				r.logger.Warn("バリエーションの生成に失敗したのでスキップするのだ", "style", style, "error", err)
				continue
			}
			variations = append(variations, generatedPrompt{
				text:           result,
				promptType:     "variation",
				approach:       base.approach,
				variationStyle: style,
			})
		}
	}
	return variations
}

// savePrompts は各プロンプトをテーマ付きタイムスタンプ名で保存し、DBへ記録するのだ。
func (r *PromptCreateRunner) savePrompts(ctx context.Context, themeName string, prompts []generatedPrompt) (int, error) {
	timestamp := time.Now().Format("20060102_150405")
	safeTheme := domain.SanitizeFilename(themeName)
	outputDir := r.opts.PromptsDir

	saved := 0
	for idx, p := range prompts {
		fileName := fmt.Sprintf("%s_%s_%02d.txt", safeTheme, timestamp, idx+1)
		filePath := filepath.Join(outputDir, fileName)

		if err := writeFile(ctx, r.writer, filePath, p.text); err != nil {
			return saved, err
		}

		if r.store != nil {
			_, err := r.store.InsertPrompt(ctx, &domain.Prompt{
				SessionID:      r.opts.SessionID,
				Theme:          themeName,
				Text:           p.text,
				Type:           p.promptType,
				ApproachType:   p.approach,
				VariationStyle: p.variationStyle,
				FileName:       fileName,
				FilePath:       filePath,
			})
			if err != nil {
				r.logger.Warn("プロンプトのDB記録に失敗したのだ", "file_name", fileName, "error", err)
			}
		}
		saved++
	}
	return saved, nil
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}
