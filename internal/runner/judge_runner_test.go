package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/theme"
)

const (
	failVerdictJSON = "```json\n" +
		`{"score": "fail", "reasoning": "needs more texture detail", "enhanced_prompt": "a refined wildlife scene with layered fur detail"}` +
		"\n```"
	passVerdictJSON = "```json\n" +
		`{"score": "pass", "reasoning": "comprehensive detail", "enhanced_prompt": "a refined wildlife scene with layered fur detail", "theme_alignment": "Excellent"}` +
		"\n```"
)

func TestPromptJudgeRunner(t *testing.T) {
	ctx := context.Background()
	const fileName = "wildlife_20250811_130401_01.txt"

	t.Run("2回目で承認されて承認済みファイルができるのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		promptID := seedPrompt(t, ctx, st, opts, fileName, "a raw wildlife prompt")
		gen := &fakeTextGenerator{responses: []string{failVerdictJSON, passVerdictJSON}}
		registry := theme.NewRegistry(writeThemeDir(t), true, discardLogger())

		r := NewPromptJudgeRunner(gen, registry, st, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Approved != 1 || result.Failed != 0 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}

		approvedPath := filepath.Join(opts.ApprovedDir, "approved_"+fileName)
		data, err := os.ReadFile(approvedPath)
		if err != nil {
			t.Fatalf("承認済みファイルが読めないのだ: %v", err)
		}
		content := string(data)
		if !strings.HasPrefix(content, "APPROVED FINAL PROMPT:\n") {
			t.Errorf("ヘッダーがないのだ: %q", content)
		}
		if !strings.Contains(content, "a refined wildlife scene with layered fur detail") {
			t.Errorf("強化プロンプトが本文にないのだ: %q", content)
		}
		if !strings.Contains(content, "Round: 2") {
			t.Errorf("承認ラウンドが記録されていないのだ: %q", content)
		}
		if !strings.Contains(content, "Database prompt_id:") {
			t.Errorf("プロンプトIDトレーラーがないのだ: %q", content)
		}

		prompts, err := st.PromptsForSession(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if len(prompts) != 1 || prompts[0].ID != promptID || prompts[0].Status != domain.PromptApproved {
			t.Errorf("プロンプト状態が approved になっていないのだ: %+v", prompts)
		}

		sess, err := st.GetSession(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if sess.TotalPromptsApproved != 1 {
			t.Errorf("承認カウンターが更新されていないのだ: %+v", sess)
		}
	})

	t.Run("上限まで不合格なら failed_evaluation になるのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		seedPrompt(t, ctx, st, opts, fileName, "a raw wildlife prompt")
		gen := &fakeTextGenerator{responses: []string{failVerdictJSON}}
		registry := theme.NewRegistry(writeThemeDir(t), true, discardLogger())

		r := NewPromptJudgeRunner(gen, registry, st, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Approved != 0 || result.Failed != 1 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}
		if gen.calls != opts.MaxIterations {
			t.Errorf("イテレーション回数が想定と違うのだ: got %d, want %d", gen.calls, opts.MaxIterations)
		}

		prompts, err := st.PromptsForSession(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if prompts[0].Status != domain.PromptFailedEvaluation {
			t.Errorf("状態が failed_evaluation になっていないのだ: %q", prompts[0].Status)
		}
	})

	t.Run("不合格の強化プロンプトが次の審査入力に引き継がれるのだ", func(t *testing.T) {
		opts := testOptions(t)
		seedRawFile(t, opts, fileName, "the original raw prompt")

		var secondInput string
		gen := &capturingTextGenerator{
			responses: []string{failVerdictJSON, passVerdictJSON},
			onCall: func(call int, judgePrompt string) {
				if call == 2 {
					secondInput = judgePrompt
				}
			},
		}
		registry := theme.NewRegistry(writeThemeDir(t), true, discardLogger())

		r := NewPromptJudgeRunner(gen, registry, nil, localReader{}, localWriter{}, opts, discardLogger())
		if _, err := r.Run(ctx); err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if !strings.Contains(secondInput, "a refined wildlife scene with layered fur detail") {
			t.Error("2回目の審査入力に強化プロンプトが含まれていないのだ")
		}
		if strings.Contains(secondInput, "the original raw prompt") {
			t.Error("2回目の審査入力が元のプロンプトのままなのだ")
		}
	})

	t.Run("解析不能な応答はフォールバックで合格扱いなのだ", func(t *testing.T) {
		opts := testOptions(t)
		seedRawFile(t, opts, fileName, "a raw wildlife prompt")
		gen := &fakeTextGenerator{responses: []string{"a free-form enhanced description without any JSON"}}
		registry := theme.NewRegistry(writeThemeDir(t), true, discardLogger())

		r := NewPromptJudgeRunner(gen, registry, nil, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Approved != 1 {
			t.Errorf("フォールバック承認になっていないのだ: %+v", result)
		}
	})

	t.Run("テーマ未指定ならファイル名から自動判定して審査できるのだ", func(t *testing.T) {
		opts := testOptions(t)
		opts.Theme = ""
		seedRawFile(t, opts, fileName, "a raw wildlife prompt")
		gen := &fakeTextGenerator{responses: []string{passVerdictJSON}}
		registry := theme.NewRegistry(writeThemeDir(t), true, discardLogger())

		r := NewPromptJudgeRunner(gen, registry, nil, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Approved != 1 {
			t.Fatalf("自動判定したテーマで承認されるはずなのだ: %+v", result)
		}
		content, err := os.ReadFile(result.ApprovedFiles[0])
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "Theme: wildlife") {
			t.Errorf("承認ファイルに判定済みテーマが書かれていないのだ:\n%s", content)
		}
	})
}

func TestDetectThemeName(t *testing.T) {
	known := []string{"wildlife", "edge_of_frame"}

	t.Run("フォルダ名からテーマを見つけるのだ", func(t *testing.T) {
		got := detectThemeName(known, "wildlife_prompts", nil)
		if got != "wildlife" {
			t.Errorf("wildlife のはずが %q なのだ", got)
		}
	})

	t.Run("複合語テーマはファイル名の語でも当たるのだ", func(t *testing.T) {
		files := []string{"edge_20250811_130401_01.txt"}
		got := detectThemeName(known, "raw", files)
		if got != "edge_of_frame" {
			t.Errorf("edge_of_frame のはずが %q なのだ", got)
		}
	})

	t.Run("どれにも当たらなければ default なのだ", func(t *testing.T) {
		got := detectThemeName(known, "raw", []string{"misc_001.txt"})
		if got != "default" {
			t.Errorf("default のはずが %q なのだ", got)
		}
	})
}

// capturingTextGenerator は呼び出しごとの入力を観察できるテスト用ジェネレーターなのだ。
type capturingTextGenerator struct {
	responses []string
	onCall    func(call int, prompt string)
	calls     int
}

func (c *capturingTextGenerator) Generate(_ context.Context, prompt string) (string, error) {
	c.calls++
	if c.onCall != nil {
		c.onCall(c.calls, prompt)
	}
	idx := c.calls - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return c.responses[idx], nil
}

// seedRawFile はDBなしテスト用に raw プロンプトファイルだけを置くのだ。
func seedRawFile(t *testing.T, opts config.PipelineOptions, fileName, text string) {
	t.Helper()
	if err := os.MkdirAll(opts.PromptsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.PromptsDir, fileName), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}
