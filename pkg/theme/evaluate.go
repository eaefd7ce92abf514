package theme

import "strings"

// passThreshold は weighted テーマで合格とみなす総合スコアの下限なのだ。
const passThreshold = 0.7

// EvaluationResult はテーマルールに対する機械的な審査結果なのだ。
type EvaluationResult struct {
	Score           string // "pass" または "fail"
	OverallScore    float64
	WordCount       int
	DetailedScores  map[string]float64
	MissingGroups   []int
	MissingElements []string
	ForbiddenFound  []string
}

// Evaluate はテキストをテーマルールに照らして審査します。
// 設定の Kind に応じて simple と weighted の2方式を切り替えるのだ。
func Evaluate(cfg *Config, text string) EvaluationResult {
	if cfg.Kind() == KindWeighted {
		return evaluateWeighted(cfg, text)
	}
	return evaluateSimple(cfg, text)
}

// evaluateSimple は語数といくつかの定型語の有無だけを見る軽量な審査なのだ。
func evaluateSimple(cfg *Config, text string) EvaluationResult {
	wordCount := len(strings.Fields(text))
	min, _ := cfg.WordCountRange()

	missing := missingRealisticTerms(text)
	score := "fail"
	if wordCount >= min && len(missing) == 0 {
		score = "pass"
	}

	overall := 0.0
	if score == "pass" {
		overall = 1.0
	}
	return EvaluationResult{
		Score:           score,
		OverallScore:    overall,
		WordCount:       wordCount,
		MissingElements: missing,
	}
}

// evaluateWeighted は重み付きスコアリングによる審査なのだ。
// 必須キーワードはグループ間AND・グループ内ORで判定するのだ。
func evaluateWeighted(cfg *Config, text string) EvaluationResult {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))
	min, max := cfg.WordCountRange()

	scores := make(map[string]float64)
	result := EvaluationResult{
		WordCount:      wordCount,
		DetailedScores: scores,
	}

	if min <= wordCount && wordCount <= max {
		scores["word_count"] = 1.0
	} else {
		scores["word_count"] = 0.0
	}

	scores["mandatory_keywords"] = 1.0
	for i, group := range cfg.MandatoryKeywords {
		found := false
		for _, kw := range group {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			scores["mandatory_keywords"] = 0.0
			result.MissingGroups = append(result.MissingGroups, i)
		}
	}

	if len(cfg.RequiredElements) > 0 {
		var total float64
		for name, rule := range cfg.RequiredElements {
			minCount := rule.MinCount
			if minCount == 0 {
				minCount = 1
			}
			found := 0
			for _, item := range rule.AnyOf {
				if strings.Contains(lower, strings.ToLower(item)) {
					found++
				}
			}
			elementScore := float64(found) / float64(minCount)
			if elementScore > 1.0 {
				elementScore = 1.0
			}
			total += elementScore
			if found < minCount {
				result.MissingElements = append(result.MissingElements, name)
			}
		}
		scores["required_elements"] = total / float64(len(cfg.RequiredElements))
	} else {
		scores["required_elements"] = 1.0
	}

	if missing := missingRealisticTerms(text); len(missing) == 0 {
		scores["technical_accuracy"] = 1.0
	} else {
		scores["technical_accuracy"] = 0.5
	}

	scores["physical_realism"] = 1.0
	for _, forbidden := range cfg.ForbiddenElements {
		if strings.Contains(lower, strings.ToLower(forbidden)) {
			scores["physical_realism"] = 0.0
			result.ForbiddenFound = append(result.ForbiddenFound, forbidden)
		}
	}

	var overall float64
	for category, weight := range cfg.Weights() {
		if s, ok := scores[category]; ok {
			overall += s * weight
		}
	}
	result.OverallScore = overall

	result.Score = "fail"
	if overall >= passThreshold {
		result.Score = "pass"
	}
	return result
}

// missingRealisticTerms はハイパーリアリズム系の定型語のうち欠けているものを返すのだ。
func missingRealisticTerms(text string) []string {
	required := []string{
		"hyperrealistic",
		"8k resolution",
		"ultra-detailed",
		"professional photography",
	}
	lower := strings.ToLower(text)
	var missing []string
	for _, term := range required {
		if !strings.Contains(lower, term) {
			missing = append(missing, term)
		}
	}
	return missing
}
