package parser

import (
	"strings"
	"testing"
)

func TestExtractOptimizedPrompt(t *testing.T) {
	t.Run("承認セクションの本文がそのまま取り出されるのだ", func(t *testing.T) {
		input := "APPROVED FINAL PROMPT: a majestic wolf in the misty forest\n\nRound: 2\nProcessing time: 3.4s"
		got := ExtractOptimizedPrompt(input)
		want := "a majestic wolf in the misty forest"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("マークダウン強調とセクション見出しは除去されるのだ", func(t *testing.T) {
		input := "APPROVED FINAL PROMPT:\n**Enhanced Version**\nScene Description: a wolf\nat dawn\n\nRound: 1"
		got := ExtractOptimizedPrompt(input)
		if strings.Contains(got, "**") || strings.Contains(got, "Scene Description") {
			t.Errorf("構造マーカーが残っているのだ: %q", got)
		}
		if !strings.Contains(got, "a wolf") {
			t.Errorf("本文が失われているのだ: %q", got)
		}
	})

	t.Run("承認マーカーがなければFinal promptの行を探すのだ", func(t *testing.T) {
		input := "Final prompt is 42 words\na wolf pack crossing a frozen river\n\nExtra notes"
		got := ExtractOptimizedPrompt(input)
		want := "a wolf pack crossing a frozen river"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("最終手段は全文の空白畳み込みなのだ", func(t *testing.T) {
		input := "just   some\n\nloose   text"
		got := ExtractOptimizedPrompt(input)
		want := "just some loose text"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("抽出は冪等なのだ", func(t *testing.T) {
		input := "APPROVED FINAL PROMPT: a lone eagle above the canyon\n\nRound: 3"
		once := ExtractOptimizedPrompt(input)
		twice := ExtractOptimizedPrompt(once)
		if once != twice {
			t.Errorf("冪等になっていないのだ: %q != %q", once, twice)
		}
	})
}

func TestExtractMetadata(t *testing.T) {
	content := `APPROVED FINAL PROMPT: a wolf

Round: 2
Theme: wildlife
Database evaluation_id: 17
Database prompt_id: 4
`
	meta := ExtractMetadata(content)
	if meta.EvaluationID != 17 {
		t.Errorf("EvaluationID = %d, want 17", meta.EvaluationID)
	}
	if meta.PromptID != 4 {
		t.Errorf("PromptID = %d, want 4", meta.PromptID)
	}
	if meta.Theme != "wildlife" {
		t.Errorf("Theme = %q, want wildlife", meta.Theme)
	}
}

func TestReformattedFileName(t *testing.T) {
	t.Run("タイムスタンプが圧縮されて接頭辞が付くのだ", func(t *testing.T) {
		got := ReformattedFileName("approved_wildlife_20250811_130401_01.txt")
		want := "generator_wildlife_20250811130401_01.txt"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("タイムスタンプがなければ名前をそのまま使うのだ", func(t *testing.T) {
		got := ReformattedFileName("approved_custom.txt")
		want := "generator_custom.txt"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestCompressionRatio(t *testing.T) {
	if r := CompressionRatio(0, 10); r != 0 {
		t.Errorf("空入力の比率 = %v, want 0", r)
	}
	if r := CompressionRatio(200, 100); r != 0.5 {
		t.Errorf("比率 = %v, want 0.5", r)
	}
}
