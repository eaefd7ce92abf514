package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

func TestPromptReformatRunner(t *testing.T) {
	ctx := context.Background()
	const approvedName = "approved_wildlife_20250811_130401_01.txt"
	const enhanced = "a refined wildlife scene with layered fur detail and golden hour backlighting"

	t.Run("承認済みファイルを一行プロンプトへ変換してDBへ記録するのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		promptID := seedPrompt(t, ctx, st, opts, "wildlife_20250811_130401_01.txt", "a raw wildlife prompt")
		evalID, err := st.InsertEvaluation(ctx, &domain.Evaluation{
			PromptID:        promptID,
			SessionID:       opts.SessionID,
			IterationNumber: 2,
			OriginalPrompt:  "a raw wildlife prompt",
			RefinedPrompt:   enhanced,
			Score:           "pass",
			Approved:        true,
		})
		if err != nil {
			t.Fatal(err)
		}

		content := fmt.Sprintf(
			"APPROVED FINAL PROMPT:\n%s\n\nRound: 2\nTheme: wildlife\nDatabase evaluation_id: %d\nDatabase prompt_id: %d\n",
			enhanced, evalID, promptID)
		seedApprovedFile(t, opts, approvedName, content)

		r := NewPromptReformatRunner(st, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Processed != 1 || result.Failed != 0 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}

		outName := "generator_wildlife_20250811130401_01.txt"
		data, err := os.ReadFile(filepath.Join(opts.ReformattedDir, outName))
		if err != nil {
			t.Fatalf("再整形ファイルが読めないのだ: %v", err)
		}
		optimized := string(data)
		if optimized != enhanced {
			t.Errorf("最適化プロンプトが想定と違うのだ: got %q, want %q", optimized, enhanced)
		}
		if strings.Contains(optimized, "\n") {
			t.Errorf("改行が残っているのだ: %q", optimized)
		}

		row, err := st.FindReformattedByFileName(ctx, opts.SessionID, outName)
		if err != nil {
			t.Fatal(err)
		}
		if row == nil {
			t.Fatal("再整形行がDBに記録されていないのだ")
		}
		if row.EvaluationID != evalID || row.PromptID != promptID {
			t.Errorf("紐づけIDが想定と違うのだ: %+v", row)
		}
		if row.CompressionRatio <= 0 || row.CompressionRatio >= 1 {
			t.Errorf("圧縮率が不自然なのだ: %f", row.CompressionRatio)
		}
	})

	t.Run("トレーラーのないファイルはDB逆引きで紐づけるのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		promptID := seedPrompt(t, ctx, st, opts, "wildlife_20250811_130401_01.txt", "a raw wildlife prompt")
		evalID, err := st.InsertEvaluation(ctx, &domain.Evaluation{
			PromptID:  promptID,
			SessionID: opts.SessionID,
			Score:     "pass",
			Approved:  true,
		})
		if err != nil {
			t.Fatal(err)
		}

		seedApprovedFile(t, opts, approvedName,
			"APPROVED FINAL PROMPT:\n"+enhanced+"\n\nRound: 1\n")

		r := NewPromptReformatRunner(st, localReader{}, localWriter{}, opts, discardLogger())
		if _, err := r.Run(ctx); err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}

		row, err := st.FindReformattedByFileName(ctx, opts.SessionID, "generator_wildlife_20250811130401_01.txt")
		if err != nil {
			t.Fatal(err)
		}
		if row == nil || row.EvaluationID != evalID {
			t.Errorf("逆引きの紐づけができていないのだ: %+v", row)
		}
	})

	t.Run("DBなしでもファイルだけで再整形できるのだ", func(t *testing.T) {
		opts := testOptions(t)
		seedApprovedFile(t, opts, approvedName,
			"APPROVED FINAL PROMPT:\n"+enhanced+"\n\nRound: 1\nTheme: wildlife\n")

		r := NewPromptReformatRunner(nil, localReader{}, localWriter{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Processed != 1 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}
	})

	t.Run("承認済みファイルがなければエラーなのだ", func(t *testing.T) {
		opts := testOptions(t)
		if err := os.MkdirAll(opts.ApprovedDir, 0o755); err != nil {
			t.Fatal(err)
		}
		r := NewPromptReformatRunner(nil, localReader{}, localWriter{}, opts, discardLogger())
		if _, err := r.Run(ctx); err == nil {
			t.Error("エラーになるはずなのだ")
		}
	})
}

func seedApprovedFile(t *testing.T, opts config.PipelineOptions, fileName, content string) {
	t.Helper()
	if err := os.MkdirAll(opts.ApprovedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.ApprovedDir, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
