package runner

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/pkg/gemini"
)

// TextGenerator はテキスト補完呼び出しの最小の面なのだ。
// テストではフェイクに差し替えるのだ。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiTextGenerator は Gemini クライアントを TextGenerator に適合させるアダプターなのだ。
type GeminiTextGenerator struct {
	client gemini.GenerativeModel
	model  string
}

// NewGeminiTextGenerator は新しいアダプターを生成します。
func NewGeminiTextGenerator(client gemini.GenerativeModel, model string) *GeminiTextGenerator {
	return &GeminiTextGenerator{client: client, model: model}
}

// Generate はプロンプトを送信し、応答テキストを返すのだ。
func (g *GeminiTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerateContent(ctx, prompt, g.model)
	if err != nil {
		return "", fmt.Errorf("テキスト生成に失敗したのだ: %w", err)
	}
	return resp.Text, nil
}
