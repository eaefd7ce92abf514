// Package parser は、審査応答のJSON解析と承認済みプロンプトの再整形を提供するのだ。
// モデル出力は形式が揺れるので、どちらも段階的なフォールバックで読み解くのだ。
package parser

import (
	"encoding/json"
	"strings"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

// fallbackPromptLimit はフォールバック時に応答本文から採用する最大文字数なのだ。
const fallbackPromptLimit = 500

// Verdict は審査応答1件の構造化結果なのだ。
type Verdict struct {
	Score          string `json:"score"`
	Reasoning      string `json:"reasoning"`
	EnhancedPrompt string `json:"enhanced_prompt"`
	ThemeAlignment string `json:"theme_alignment"`
	LightingNotes  string `json:"lighting_notes"`

	// Method はどの解析戦略が採用されたかを示します (ログとデバッグ用)。
	Method string `json:"-"`
}

// ParseVerdict は審査モデルの生応答を Verdict へ解析します。
// 戦略は順に、(1) ```json フェンス、(2) "score" キーを含む裸のJSON、
// (3) 個別フィールドの正規表現抽出、(4) 応答全文を合格扱いするフォールバック。
// 最後の戦略は必ず成功するので、この関数は決して失敗しないのだ。
func ParseVerdict(raw string, currentPrompt string) Verdict {
	if v, ok := parseFencedJSON(raw); ok {
		return fillDefaults(v, currentPrompt)
	}
	if v, ok := parseRawJSON(raw); ok {
		return fillDefaults(v, currentPrompt)
	}
	if v, ok := parseManualKeys(raw); ok {
		return fillDefaults(v, currentPrompt)
	}

	enhanced := domain.TruncateRunes(strings.TrimSpace(raw), fallbackPromptLimit)
	return Verdict{
		Score:          "pass",
		Reasoning:      "Enhanced via fallback parsing",
		EnhancedPrompt: enhanced + "...",
		ThemeAlignment: "Good",
		Method:         "fallback",
	}
}

func parseFencedJSON(raw string) (Verdict, bool) {
	for i, re := range fencedJSONPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		body := m[1]
		if strings.HasPrefix(body, "[") {
			// 配列形式の場合は先頭要素を採用するのだ
			var items []Verdict
			if err := json.Unmarshal([]byte(body), &items); err != nil || len(items) == 0 {
				continue
			}
			items[0].Method = markdownMethod(i)
			return items[0], true
		}
		var v Verdict
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			continue
		}
		v.Method = markdownMethod(i)
		return v, true
	}
	return Verdict{}, false
}

func parseRawJSON(raw string) (Verdict, bool) {
	for i, re := range rawJSONPatterns {
		for _, candidate := range re.FindAllString(raw, -1) {
			var v Verdict
			if err := json.Unmarshal([]byte(candidate), &v); err != nil {
				continue
			}
			if v.Score == "" {
				continue
			}
			v.Method = rawMethod(i)
			return v, true
		}
	}
	return Verdict{}, false
}

func parseManualKeys(raw string) (Verdict, bool) {
	v := Verdict{Method: "manual_extraction"}
	if m := scoreKeyRegex.FindStringSubmatch(raw); m != nil {
		v.Score = strings.ToLower(m[1])
	}
	if v.Score == "" {
		return Verdict{}, false
	}
	if m := reasoningKeyRegex.FindStringSubmatch(raw); m != nil {
		v.Reasoning = strings.TrimSpace(m[1])
	}
	if m := promptKeyRegex.FindStringSubmatch(raw); m != nil {
		v.EnhancedPrompt = strings.TrimSpace(m[1])
	}
	return v, true
}

// fillDefaults は欠けたフィールドに安全な既定値を補うのだ。
func fillDefaults(v Verdict, currentPrompt string) Verdict {
	if v.Score == "" {
		v.Score = "fail"
	}
	v.Score = strings.ToLower(strings.TrimSpace(v.Score))
	if v.EnhancedPrompt == "" {
		v.EnhancedPrompt = currentPrompt
	}
	return v
}

func markdownMethod(i int) string {
	return "markdown_pattern_" + string(rune('1'+i))
}

func rawMethod(i int) string {
	return "raw_pattern_" + string(rune('1'+i))
}
