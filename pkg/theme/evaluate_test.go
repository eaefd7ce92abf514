package theme

import (
	"strings"
	"testing"
)

// weightedConfig は審査テスト用の重み付きテーマなのだ。
func weightedConfig() *Config {
	return &Config{
		Name:     "wildlife",
		MinWords: 10,
		MaxWords: 200,
		MandatoryKeywords: [][]string{
			{"wolf", "bear"},
			{"forest", "mountain"},
		},
		RequiredElements: map[string]ElementRule{
			"habitat": {AnyOf: []string{"den", "nest"}, MinCount: 1},
		},
		ForbiddenElements: []string{"cartoon"},
		ScoringWeights: map[string]float64{
			"word_count":         0.2,
			"mandatory_keywords": 0.3,
			"required_elements":  0.2,
			"technical_accuracy": 0.2,
			"physical_realism":   0.1,
		},
	}
}

const goodPrompt = "Hyperrealistic photograph of a lone wolf near its den in a misty forest, " +
	"8K resolution, ultra-detailed fur texture, professional photography with natural morning light"

func TestEvaluateWeighted(t *testing.T) {
	cfg := weightedConfig()

	t.Run("全条件を満たすプロンプトは合格なのだ", func(t *testing.T) {
		res := Evaluate(cfg, goodPrompt)
		if res.Score != "pass" {
			t.Errorf("Score = %q (overall %.2f), want pass", res.Score, res.OverallScore)
		}
	})

	t.Run("必須キーワードグループが欠けると記録されるのだ", func(t *testing.T) {
		res := Evaluate(cfg, "Hyperrealistic photo of a wolf, 8K resolution, ultra-detailed, professional photography")
		if len(res.MissingGroups) == 0 {
			t.Error("forest/mountain グループの欠落が検出されていないのだ")
		}
	})

	t.Run("禁止要素があると physical_realism が0になるのだ", func(t *testing.T) {
		res := Evaluate(cfg, goodPrompt+" in cartoon style")
		if res.DetailedScores["physical_realism"] != 0.0 {
			t.Errorf("physical_realism = %v, want 0.0", res.DetailedScores["physical_realism"])
		}
		if len(res.ForbiddenFound) != 1 {
			t.Errorf("ForbiddenFound = %v, want 1件", res.ForbiddenFound)
		}
	})

	t.Run("キーワードの判定は大文字小文字を区別しないのだ", func(t *testing.T) {
		res := Evaluate(cfg, strings.ToUpper(goodPrompt))
		if res.DetailedScores["mandatory_keywords"] != 1.0 {
			t.Errorf("mandatory_keywords = %v, want 1.0", res.DetailedScores["mandatory_keywords"])
		}
	})
}

func TestEvaluateSimple(t *testing.T) {
	cfg := &Config{Name: "simple", MinimumWordCount: 10}

	t.Run("語数と定型語が揃えば合格なのだ", func(t *testing.T) {
		res := Evaluate(cfg, goodPrompt)
		if res.Score != "pass" {
			t.Errorf("Score = %q, want pass (missing: %v)", res.Score, res.MissingElements)
		}
	})

	t.Run("短すぎるプロンプトは不合格なのだ", func(t *testing.T) {
		res := Evaluate(cfg, "a wolf")
		if res.Score != "fail" {
			t.Errorf("Score = %q, want fail", res.Score)
		}
	})

	t.Run("定型語が欠けると不合格で欠落が列挙されるのだ", func(t *testing.T) {
		res := Evaluate(cfg, strings.Repeat("detailed forest scene ", 10))
		if res.Score != "fail" {
			t.Errorf("Score = %q, want fail", res.Score)
		}
		if len(res.MissingElements) != 4 {
			t.Errorf("MissingElements = %v, want 4件", res.MissingElements)
		}
	})
}
