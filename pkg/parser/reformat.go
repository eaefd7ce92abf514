package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Metadata は承認済みファイルに埋め込まれたトレーラー情報なのだ。
// 値が取れなかったフィールドはゼロ値のままになるのだ。
type Metadata struct {
	EvaluationID   int64
	PromptID       int64
	Theme          string
	OriginalPrompt string
}

var (
	trailerCutters = []*regexp.Regexp{
		regexp.MustCompile(`(?s)Original Prompt:.*?={40,}`),
		regexp.MustCompile(`(?s)Round:.*`),
		regexp.MustCompile(`(?s)Iterations:.*`),
		regexp.MustCompile(`(?s)Processing time:.*`),
	}
	blankLineHeaderRegex  = regexp.MustCompile(`\n\n[A-Z][^:\n]*:\s*`)
	originalPromptEndings = []string{"\n\n", "\n="}
)

// ExtractOptimizedPrompt は承認済みファイルの本文から画像ジェネレーター向けの
// クリーンな一行プロンプトを取り出します。段階的フォールバックで、
// どんな入力でも必ず何らかのテキストを返すのだ。
func ExtractOptimizedPrompt(detailed string) string {
	if text, ok := extractApprovedSection(detailed); ok {
		return text
	}
	if text, ok := extractAfterMarker(detailed, FinalPromptLineRegex, []string{"\n\n"}); ok {
		return text
	}
	if text, ok := extractAfterMarker(detailed, OriginalPromptRegex, originalPromptEndings); ok {
		return text
	}

	// 最後の手段として全文から構造マーカーを削ぎ落とすのだ
	cleaned := detailed
	for _, re := range trailerCutters {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = boldMarkerRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(whitespaceRunRegex.ReplaceAllString(cleaned, " "))
}

// extractApprovedSection は "APPROVED FINAL PROMPT:" セクションを取り出して整形するのだ。
func extractApprovedSection(detailed string) (string, bool) {
	loc := ApprovedHeaderRegex.FindStringIndex(detailed)
	if loc == nil {
		return "", false
	}
	text := detailed[loc[1]:]
	if idx := strings.Index(text, "\n\nRound:"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)

	text = boldMarkerRegex.ReplaceAllString(text, "")
	text = sectionHeaderRegex.ReplaceAllString(text, "")
	text = blankLineHeaderRegex.ReplaceAllString(text, "\n\n")
	text = newlineRunRegex.ReplaceAllString(text, " ")
	text = whitespaceRunRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), true
}

// extractAfterMarker はマーカー直後のテキストを、最初の終端パターンまで取り出すのだ。
func extractAfterMarker(detailed string, marker *regexp.Regexp, endings []string) (string, bool) {
	loc := marker.FindStringIndex(detailed)
	if loc == nil {
		return "", false
	}
	text := detailed[loc[1]:]
	cut := len(text)
	for _, end := range endings {
		if idx := strings.Index(text, end); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	result := strings.TrimSpace(text[:cut])
	if result == "" {
		return "", false
	}
	return result, true
}

// ExtractMetadata は承認済みファイル本文からデータベースIDなどの
// トレーラー情報を読み取ります。
func ExtractMetadata(content string) Metadata {
	var meta Metadata
	if m := evaluationIDRegex.FindStringSubmatch(content); m != nil {
		meta.EvaluationID, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := promptIDRegex.FindStringSubmatch(content); m != nil {
		meta.PromptID, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := themeLineRegex.FindStringSubmatch(content); m != nil {
		meta.Theme = strings.TrimSpace(m[1])
	}
	if text, ok := extractAfterMarker(content, OriginalPromptRegex, []string{"\n\n="}); ok {
		meta.OriginalPrompt = text
	}
	return meta
}

// ReformattedFileName は承認済みファイル名から出力ファイル名を組み立てます。
// "approved_wildlife_20250811_130401_01.txt" -> "generator_wildlife_20250811130401_01.txt"
// タイムスタンプを圧縮して一意性を保ちつつ衝突しにくい名前にするのだ。
func ReformattedFileName(approvedName string) string {
	base := strings.Replace(approvedName, "approved_", "", 1)
	if m := TimestampSuffixRegex.FindStringSubmatch(base); m != nil {
		compact := m[1] + m[2]
		base = TimestampSuffixRegex.ReplaceAllString(base, "_"+compact)
	}
	return "generator_" + base
}

// CompressionRatio は再整形前後の文字数比を計算します。入力が空なら0なのだ。
func CompressionRatio(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return float64(after) / float64(before)
}
