package imagegen

import (
	"reflect"
	"testing"
)

func TestNormalizeOutput(t *testing.T) {
	t.Run("裸のURL文字列は1要素のリストになるのだ", func(t *testing.T) {
		got, err := NormalizeOutput("https://example.com/a.png")
		if err != nil {
			t.Fatalf("NormalizeOutput に失敗したのだ: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"https://example.com/a.png"}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("URLのリストはそのまま平坦化されるのだ", func(t *testing.T) {
		got, err := NormalizeOutput([]any{"https://example.com/a.png", "https://example.com/b.png"})
		if err != nil {
			t.Fatalf("NormalizeOutput に失敗したのだ: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("urlフィールドを持つオブジェクトからURLを取り出すのだ", func(t *testing.T) {
		got, err := NormalizeOutput(map[string]any{"url": "https://example.com/a.png"})
		if err != nil {
			t.Fatalf("NormalizeOutput に失敗したのだ: %v", err)
		}
		if got[0] != "https://example.com/a.png" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("オブジェクトのリストも平坦化されるのだ", func(t *testing.T) {
		got, err := NormalizeOutput([]any{
			map[string]any{"url": "https://example.com/a.png"},
			map[string]any{"url": "https://example.com/b.png"},
		})
		if err != nil {
			t.Fatalf("NormalizeOutput に失敗したのだ: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("http以外のスキームは拒否されるのだ", func(t *testing.T) {
		if _, err := NormalizeOutput("ftp://example.com/a.png"); err == nil {
			t.Error("ftp のURLが受理されてしまったのだ")
		}
	})

	t.Run("解釈できない形式はエラーなのだ", func(t *testing.T) {
		for _, bad := range []any{42, nil, map[string]any{"id": "x"}, []any{1, 2}} {
			if _, err := NormalizeOutput(bad); err == nil {
				t.Errorf("NormalizeOutput(%v) がエラーにならなかったのだ", bad)
			}
		}
	})
}

func TestSplitModel(t *testing.T) {
	owner, name, err := splitModel("black-forest-labs/flux-krea-dev")
	if err != nil || owner != "black-forest-labs" || name != "flux-krea-dev" {
		t.Errorf("owner=%q name=%q err=%v", owner, name, err)
	}
	if _, _, err := splitModel("notamodel"); err == nil {
		t.Error("不正なモデル識別子が受理されてしまったのだ")
	}
}
