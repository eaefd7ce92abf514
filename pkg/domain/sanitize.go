package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxFilenameLength  = 200
	fallbackFilename   = "generated_image"
	sessionIDMinLength = 5
	sessionIDMaxLength = 100
)

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	multiSpace       = regexp.MustCompile(`\s+`)
)

// 紛らわしいUnicode句読点をASCIIへ畳み込む対応表なのだ。
var unicodeFolds = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
)

// ファイル名として危険な文字の一覧なのだ。パス区切りも含むのだ。
const unsafeFilenameChars = "/\\<>:\"|?*"

// ValidateSessionID はセッションIDの形式を検証します。
// 英数字とアンダースコア・ハイフンのみ、5〜100文字を許可するのだ。
func ValidateSessionID(id string) error {
	if len(id) < sessionIDMinLength || len(id) > sessionIDMaxLength {
		return fmt.Errorf("セッションIDの長さが不正なのだ (%d文字): %d〜%d文字で指定するのだ", len(id), sessionIDMinLength, sessionIDMaxLength)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("セッションIDに使用できない文字が含まれているのだ: %q", id)
	}
	return nil
}

// SanitizePrompt はプロンプト文字列を安全なファイル名へ変換します。
// Unicode句読点の畳み込み、危険文字の置換、制御文字の除去を行い、
// 長すぎる場合は単語境界で切り詰めるのだ。
func SanitizePrompt(prompt string) string {
	s := unicodeFolds.Replace(prompt)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			// 制御文字は捨てるのだ
		case strings.ContainsRune(unsafeFilenameChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	s = multiSpace.ReplaceAllString(b.String(), " ")
	s = strings.TrimSpace(s)

	if cut := TruncateRunes(s, maxFilenameLength); cut != s {
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		s = strings.TrimSpace(cut)
	}

	if s == "" {
		return fallbackFilename
	}
	return s
}

// TruncateRunes は文字数で切り詰めます。バイト境界でルーンを壊さないのだ。
func TruncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// SanitizeFilename はファイル名の空白をアンダースコアへ寄せた形で返します。
func SanitizeFilename(name string) string {
	return strings.ReplaceAll(SanitizePrompt(name), " ", "_")
}
