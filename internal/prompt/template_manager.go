// Package prompt は、各ステージがLLMへ送る指示文テンプレートを束ねるのだ。
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

// base プロンプトの4つのアプローチなのだ。この順番で生成するのだ。
const (
	ApproachDynamicAction   = "dynamic_action"
	ApproachAtmosphericWide = "atmospheric_wide"
	ApproachDetailFocus     = "detail_focus"
	ApproachCinematicMoment = "cinematic_moment"
)

// バリエーション生成の3スタイルなのだ。
const (
	VariationPerspectiveShift = "perspective_shift"
	VariationTimeVariation    = "time_variation"
	VariationIntensityChange  = "intensity_change"
)

// Approaches は base プロンプト生成の固定順序なのだ。
var Approaches = []string{
	ApproachDynamicAction,
	ApproachAtmosphericWide,
	ApproachDetailFocus,
	ApproachCinematicMoment,
}

// VariationStyles はバリエーション生成のスタイル順序なのだ。
var VariationStyles = []string{
	VariationPerspectiveShift,
	VariationTimeVariation,
	VariationIntensityChange,
}

// テンプレートへ流し込む素材のプールなのだ。ランダムに1つ選んで使うのだ。
var (
	MoodPool       = []string{"dynamic energy", "vibrant atmosphere", "authentic moment"}
	LightingPool   = []string{"natural lighting", "ambient illumination", "documentary style"}
	ScenePool      = []string{"detailed objects", "environmental context", "realistic positioning"}
	AtmospherePool = []string{"authentic arrangement", "natural physics", "discovered patterns"}
)

//go:embed system_rule.md
var systemRule string

//go:embed approach_dynamic_action.md
var dynamicActionPrompt string

//go:embed approach_atmospheric_wide.md
var atmosphericWidePrompt string

//go:embed approach_detail_focus.md
var detailFocusPrompt string

//go:embed approach_cinematic_moment.md
var cinematicMomentPrompt string

//go:embed variation_perspective_shift.md
var perspectiveShiftPrompt string

//go:embed variation_time_variation.md
var timeVariationPrompt string

//go:embed variation_intensity_change.md
var intensityChangePrompt string

//go:embed judge.md
var judgePrompt string

// approachTemplates はアプローチ名とテンプレートを紐づけるマップなのだ。
var approachTemplates = map[string]*template.Template{
	ApproachDynamicAction:   template.Must(template.New(ApproachDynamicAction).Parse(dynamicActionPrompt)),
	ApproachAtmosphericWide: template.Must(template.New(ApproachAtmosphericWide).Parse(atmosphericWidePrompt)),
	ApproachDetailFocus:     template.Must(template.New(ApproachDetailFocus).Parse(detailFocusPrompt)),
	ApproachCinematicMoment: template.Must(template.New(ApproachCinematicMoment).Parse(cinematicMomentPrompt)),
}

var variationTemplates = map[string]*template.Template{
	VariationPerspectiveShift: template.Must(template.New(VariationPerspectiveShift).Parse(perspectiveShiftPrompt)),
	VariationTimeVariation:    template.Must(template.New(VariationTimeVariation).Parse(timeVariationPrompt)),
	VariationIntensityChange:  template.Must(template.New(VariationIntensityChange).Parse(intensityChangePrompt)),
}

var judgeTemplate = template.Must(template.New("judge").Parse(judgePrompt))

// ApproachData はアプローチテンプレートの穴埋め素材なのだ。
type ApproachData struct {
	Theme      string
	Mood       string
	Scene      string
	Lighting   string
	Atmosphere string
	Detail     string
}

// VariationData はバリエーションテンプレートの穴埋め素材なのだ。
type VariationData struct {
	Original string
}

// JudgeData は審査テンプレートの穴埋め素材なのだ。
type JudgeData struct {
	Theme                string
	ThemeUpper           string
	ThemeNotes           string
	LightingName         string
	LightingInstructions string
	Prompt               string
}

// BuildApproachPrompt は指定アプローチの生成プロンプトを組み立てます。
// 人物禁止のシステムルールを必ず先頭に付けるのだ。
func BuildApproachPrompt(approach string, data ApproachData) (string, error) {
	tmpl, ok := approachTemplates[approach]
	if !ok {
		return "", unsupportedKeyError("アプローチ", approach, approachTemplates)
	}
	return renderWithSystemRule(tmpl, data)
}

// BuildVariationPrompt は指定スタイルのバリエーションプロンプトを組み立てます。
func BuildVariationPrompt(style string, data VariationData) (string, error) {
	tmpl, ok := variationTemplates[style]
	if !ok {
		return "", unsupportedKeyError("バリエーションスタイル", style, variationTemplates)
	}
	return renderWithSystemRule(tmpl, data)
}

// BuildJudgePrompt は審査・強化用のプロンプトを組み立てます。
// 照明指示とテーマ要件は長すぎると指示がぼやけるので切り詰めるのだ。
func BuildJudgePrompt(data JudgeData) (string, error) {
	data.ThemeUpper = strings.ToUpper(data.Theme)
	if data.LightingInstructions == "" {
		data.LightingInstructions = "Professional natural lighting"
	} else {
		data.LightingInstructions = truncate(data.LightingInstructions, 200)
	}
	if data.ThemeNotes == "" {
		data.ThemeNotes = "Hyperrealistic photography with detailed textures and authentic environmental context"
	} else {
		data.ThemeNotes = truncate(data.ThemeNotes, 300)
	}
	if data.LightingName == "" {
		data.LightingName = "Standard"
	}

	var buf bytes.Buffer
	if err := judgeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("審査テンプレートの展開に失敗したのだ: %w", err)
	}
	return buf.String(), nil
}

func renderWithSystemRule(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(strings.TrimSpace(systemRule))
	buf.WriteString("\n\n")
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("テンプレート '%s' の展開に失敗したのだ: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func unsupportedKeyError(kind, key string, available map[string]*template.Template) error {
	supported := slices.Collect(maps.Keys(available))
	slices.Sort(supported)
	return fmt.Errorf("サポートされていない%s: '%s'。サポートされているのは [%s] です",
		kind, key, strings.Join(supported, ", "))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
