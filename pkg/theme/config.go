// Package theme は、プロンプト生成と審査を導くテーマ定義の読み込みと評価を提供するのだ。
package theme

import (
	"fmt"
	"math"
	"strings"
)

// Kind はテーマ設定の種別なのだ。
// ルールなしの simple と、重み付きスコアリングを持つ weighted の2種類があるのだ。
type Kind string

const (
	KindSimple   Kind = "simple"
	KindWeighted Kind = "weighted"
)

const (
	defaultMinimumWordCount = 60
	defaultMaxWordCount     = 500
	weightSumTolerance      = 0.01
)

// LightingStyle はテーマ内の1つの照明スタイル設定を保持します。
type LightingStyle struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	Instructions       string `yaml:"instructions"`
	EvaluationCriteria string `yaml:"evaluation_criteria"`
	ColorPalette       string `yaml:"color_palette"`
}

// ElementRule は「必須要素」カテゴリの判定ルールなのだ。
// AnyOf のうち MinCount 個以上がテキストに現れれば合格なのだ。
type ElementRule struct {
	AnyOf    []string `yaml:"any_of"`
	MinCount int      `yaml:"min_count"`
}

// Config はテーマ定義ファイル1件分の設定なのだ。
// 基本フィールドに加えて、重み付き審査向けの構造化ルールを持てるのだ。
type Config struct {
	Name               string                   `yaml:"name"`
	DisplayName        string                   `yaml:"display_name"`
	Description        string                   `yaml:"description"`
	ThemeSpecificNotes string                   `yaml:"theme_specific_notes"`
	LightingStyles     map[string]LightingStyle `yaml:"lighting_styles"`
	Keywords           []string                 `yaml:"keywords"`
	MinimumWordCount   int                      `yaml:"minimum_word_count"`

	// weighted テーマ向けの構造化ルールなのだ。
	MinWords          int                    `yaml:"min_words"`
	MaxWords          int                    `yaml:"max_words"`
	MandatoryKeywords [][]string             `yaml:"mandatory_keywords"`
	RequiredElements  map[string]ElementRule `yaml:"required_elements"`
	ForbiddenElements []string               `yaml:"forbidden_elements"`
	ScoringWeights    map[string]float64     `yaml:"scoring_weights"`
}

// Kind はこの設定がどちらの評価方式で審査されるべきかを返します。
func (c *Config) Kind() Kind {
	if len(c.MandatoryKeywords) > 0 || len(c.RequiredElements) > 0 || len(c.ScoringWeights) > 0 {
		return KindWeighted
	}
	return KindSimple
}

// Validate は設定の整合性を検証します。
// 重みの合計が1.0でない weighted テーマはここで弾くのだ。
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("テーマ名が空なのだ")
	}
	if c.MinWords > 0 && c.MaxWords > 0 && c.MinWords > c.MaxWords {
		return fmt.Errorf("min_words (%d) が max_words (%d) を超えているのだ", c.MinWords, c.MaxWords)
	}
	if len(c.ScoringWeights) > 0 {
		var total float64
		for _, w := range c.ScoringWeights {
			total += w
		}
		if math.Abs(total-1.0) > weightSumTolerance {
			return fmt.Errorf("スコアリング重みの合計は1.0でなければならないのだ: %.3f", total)
		}
	}
	for name, rule := range c.RequiredElements {
		if len(rule.AnyOf) == 0 {
			return fmt.Errorf("必須要素 %q に any_of が定義されていないのだ", name)
		}
	}
	return nil
}

// WordCountRange は審査に使う語数の下限と上限を返します。
func (c *Config) WordCountRange() (int, int) {
	min := c.MinWords
	if min == 0 {
		min = c.MinimumWordCount
	}
	if min == 0 {
		min = defaultMinimumWordCount
	}
	max := c.MaxWords
	if max == 0 {
		max = defaultMaxWordCount
	}
	return min, max
}

// DefaultLightingStyle は既定の照明スタイルを返します。
// "default" キーがあればそれを、なければ汎用スタイルを返すのだ。
func (c *Config) DefaultLightingStyle() LightingStyle {
	if s, ok := c.LightingStyles["default"]; ok {
		return s
	}
	for _, s := range c.LightingStyles {
		return s
	}
	return defaultConfig().LightingStyles["default"]
}

// Weights は正規化済みのスコアリング重みを返します。
// 未指定の simple テーマには既定の重みを与えるのだ。
func (c *Config) Weights() map[string]float64 {
	if len(c.ScoringWeights) > 0 {
		return c.ScoringWeights
	}
	return map[string]float64{
		"word_count":         0.3,
		"mandatory_keywords": 0.4,
		"technical_accuracy": 0.3,
	}
}

// MatchesKeywords はテキストにこのテーマのキーワードが含まれるか調べます。
// テーマ自動検出に使うのだ。
func (c *Config) MatchesKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// defaultConfig は、定義ファイルが見つからないときの汎用フォールバック設定なのだ。
func defaultConfig() *Config {
	return &Config{
		Name:        "default",
		DisplayName: "Default",
		Description: "General hyperrealistic photography theme",
		ThemeSpecificNotes: strings.Join([]string{
			"GENERAL HYPERREALISTIC REQUIREMENTS:",
			"- Every surface must have described texture and material properties",
			"- Include environmental context and atmospheric conditions",
			"- Describe light behavior on different materials",
			"- Include age, wear, and weathering where appropriate",
			"- Minimum 60+ words of comprehensive photographic detail",
		}, "\n"),
		LightingStyles: map[string]LightingStyle{
			"default": {
				Name:               "HYPERREALISTIC STANDARD STYLE",
				Description:        "balanced natural lighting with enhanced detail for maximum photorealism",
				Instructions:       "Enhance with professional photography details, 8K resolution, ultra-detailed textures.",
				EvaluationCriteria: "Must include hyperrealistic elements and comprehensive detail.",
				ColorPalette:       "natural, true-to-life colors",
			},
		},
		MinimumWordCount: defaultMinimumWordCount,
	}
}

// DefaultConfig は汎用フォールバック設定のコピーを返します。
func DefaultConfig() *Config {
	return defaultConfig()
}
