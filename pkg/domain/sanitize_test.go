package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidateSessionID(t *testing.T) {
	t.Run("正常なセッションIDは受理されるのだ", func(t *testing.T) {
		for _, id := range []string{
			"session_20250101_123456",
			"abc-123_XYZ",
			"12345",
		} {
			if err := ValidateSessionID(id); err != nil {
				t.Errorf("ValidateSessionID(%q) = %v, 受理されるべきなのだ", id, err)
			}
		}
	})

	t.Run("不正なセッションIDは拒否されるのだ", func(t *testing.T) {
		for _, id := range []string{
			"",
			"abcd",                         // 短すぎ
			strings.Repeat("a", 101),       // 長すぎ
			"session 20250101",             // 空白
			"session/20250101",             // パス区切り
			"session;DROP TABLE sessions;", // 記号
		} {
			if err := ValidateSessionID(id); err == nil {
				t.Errorf("ValidateSessionID(%q) = nil, 拒否されるべきなのだ", id)
			}
		}
	})
}

func TestSanitizePrompt(t *testing.T) {
	t.Run("危険文字はアンダースコアに置換されるのだ", func(t *testing.T) {
		got := SanitizePrompt(`a/b\c<d>e:f"g|h?i*j`)
		if strings.ContainsAny(got, unsafeFilenameChars) {
			t.Errorf("危険文字が残っているのだ: %q", got)
		}
	})

	t.Run("Unicodeの引用符とダッシュはASCIIへ畳み込まれるのだ", func(t *testing.T) {
		got := SanitizePrompt("wolf’s den — dawn")
		want := "wolf's den - dawn"
		if got != want {
			t.Errorf("SanitizePrompt = %q, want %q", got, want)
		}
	})

	t.Run("制御文字は除去されるのだ", func(t *testing.T) {
		got := SanitizePrompt("a\x00b\tc\nd")
		if strings.ContainsAny(got, "\x00\t\n") {
			t.Errorf("制御文字が残っているのだ: %q", got)
		}
	})

	t.Run("200文字を超える場合は単語境界で切るのだ", func(t *testing.T) {
		long := strings.Repeat("word ", 60)
		got := SanitizePrompt(long)
		if len(got) > maxFilenameLength {
			t.Errorf("長さ %d が上限 %d を超えているのだ", len(got), maxFilenameLength)
		}
		if strings.HasSuffix(got, " ") {
			t.Errorf("末尾に空白が残っているのだ: %q", got)
		}
	})

	t.Run("空になった場合はフォールバック名を返すのだ", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\x00\x01"} {
			if got := SanitizePrompt(in); got != fallbackFilename {
				t.Errorf("SanitizePrompt(%q) = %q, want %q", in, got, fallbackFilename)
			}
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	t.Run("空白はアンダースコアへ置換されるのだ", func(t *testing.T) {
		got := SanitizeFilename("majestic wolf pack")
		want := "majestic_wolf_pack"
		if got != want {
			t.Errorf("SanitizeFilename = %q, want %q", got, want)
		}
	})
}

func TestTruncateRunes(t *testing.T) {
	t.Run("上限以下ならそのまま返すのだ", func(t *testing.T) {
		if got := TruncateRunes("wolf", 10); got != "wolf" {
			t.Errorf("TruncateRunes = %q, want wolf", got)
		}
	})

	t.Run("マルチバイト文字列でもルーンを壊さず切り詰めるのだ", func(t *testing.T) {
		got := TruncateRunes(strings.Repeat("狼", 80), 50)
		if !utf8.ValidString(got) {
			t.Error("切り詰めでUTF-8が壊れているのだ")
		}
		if n := utf8.RuneCountInString(got); n != 50 {
			t.Errorf("rune数 = %d, want 50", n)
		}
	})

	t.Run("長いマルチバイトプロンプトのファイル名化も安全なのだ", func(t *testing.T) {
		got := SanitizePrompt(strings.Repeat("満月の夜の狼", 50))
		if !utf8.ValidString(got) {
			t.Error("SanitizePrompt がUTF-8を壊しているのだ")
		}
		if n := utf8.RuneCountInString(got); n > 200 {
			t.Errorf("rune数 = %d, want <= 200", n)
		}
	})
}
