// Package imagegen は、外部画像生成APIへの送信と結果画像の取り回しを担当するのだ。
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/replicate/replicate-go"
)

// 画像生成APIへ渡す固定パラメータなのだ。縦長のストーリー形式で最高品質を狙うのだ。
const (
	paramGuidance       = 2
	paramAspectRatio    = "3:4"
	paramOutputFormat   = "png"
	paramOutputQuality  = 100
	paramMegapixels     = "1"
	paramNumOutputs     = 1
	paramInferenceSteps = 50
)

// Backend は画像生成APIの呼び出し面なのだ。
// テストではフェイクに差し替えるのだ。
type Backend interface {
	Generate(ctx context.Context, prompt string) (taskID string, output any, err error)
}

// ReplicateBackend は replicate のモデルを呼ぶ Backend 実装なのだ。
type ReplicateBackend struct {
	client *replicate.Client
	model  string
	logger *slog.Logger
}

// NewReplicateBackend はAPIトークンとモデル識別子 ("owner/name") からバックエンドを構築します。
func NewReplicateBackend(token, model string, logger *slog.Logger) (*ReplicateBackend, error) {
	client, err := replicate.NewClient(replicate.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("画像生成クライアントの初期化に失敗したのだ: %w", err)
	}
	return &ReplicateBackend{client: client, model: model, logger: logger}, nil
}

// Generate はプロンプトを送信し、完了まで待ってタスクIDと生の出力を返します。
func (b *ReplicateBackend) Generate(ctx context.Context, prompt string) (string, any, error) {
	owner, name, err := splitModel(b.model)
	if err != nil {
		return "", nil, err
	}

	input := replicate.PredictionInput{
		"prompt":                 prompt,
		"guidance":               paramGuidance,
		"aspect_ratio":           paramAspectRatio,
		"output_format":          paramOutputFormat,
		"output_quality":         paramOutputQuality,
		"go_fast":                false,
		"megapixels":             paramMegapixels,
		"num_outputs":            paramNumOutputs,
		"num_inference_steps":    paramInferenceSteps,
		"disable_safety_checker": false,
	}

	prediction, err := b.client.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	if err != nil {
		return "", nil, fmt.Errorf("画像生成リクエストの送信に失敗したのだ: %w", err)
	}
	b.logger.Info("画像生成を開始したのだ", "task_id", prediction.ID, "model", b.model)

	if err := b.client.Wait(ctx, prediction); err != nil {
		return prediction.ID, nil, fmt.Errorf("画像生成の完了待ちに失敗したのだ: %w", err)
	}
	if prediction.Error != nil {
		return prediction.ID, nil, fmt.Errorf("画像生成がエラーで終わったのだ: %v", prediction.Error)
	}
	return prediction.ID, prediction.Output, nil
}

func splitModel(model string) (owner, name string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("モデル識別子は 'owner/name' 形式で指定するのだ: %q", model)
	}
	return parts[0], parts[1], nil
}
