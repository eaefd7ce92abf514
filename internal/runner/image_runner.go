package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/imagegen"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// 画像ファイル名に使うプロンプト断片の最大長なのだ。
const imageNamePromptLimit = 50

// 画像フォルダに残すプロンプト対応表のファイル名なのだ。
const promptLogName = "prompt_log.txt"

// ImageResult は画像生成ステージの実行結果なのだ。
type ImageResult struct {
	SessionID  string
	Requested  int
	Generated  int
	Failed     int
	ImagePaths []string
}

// ImageGenerateRunner は、再整形済みプロンプトを画像生成APIへ送り、
// 出来上がった画像をダウンロードして記録するのだ。
type ImageGenerateRunner struct {
	backend    imagegen.Backend
	downloader *imagegen.Downloader
	store      *store.Store // nilならファイルのみモード
	reader     remoteio.InputReader
	opts       config.PipelineOptions
	logger     *slog.Logger
}

// NewImageGenerateRunner は、ImageGenerateRunnerの新しいインスタンスを生成して返すのだ。
func NewImageGenerateRunner(
	backend imagegen.Backend,
	downloader *imagegen.Downloader,
	st *store.Store,
	reader remoteio.InputReader,
	opts config.PipelineOptions,
	logger *slog.Logger,
) *ImageGenerateRunner {
	return &ImageGenerateRunner{
		backend:    backend,
		downloader: downloader,
		store:      st,
		reader:     reader,
		opts:       opts,
		logger:     logger,
	}
}

// Run は対象セッションの再整形済みプロンプトを1件ずつ画像化するのだ。
// 1件の失敗で他のプロンプトを巻き込まないのだ。
func (r *ImageGenerateRunner) Run(ctx context.Context) (*ImageResult, error) {
	allFiles, err := listPromptFiles(r.opts.ReformattedDir)
	if err != nil {
		return nil, err
	}
	if len(allFiles) == 0 {
		return nil, fmt.Errorf("画像化対象のプロンプトファイルが %s に見つからないのだ", r.opts.ReformattedDir)
	}
	targets := selectSessionFiles(allFiles, nil, r.opts.SessionID, r.logger)

	if err := os.MkdirAll(r.opts.ImagesOutDir, 0o755); err != nil {
		return nil, fmt.Errorf("画像出力ディレクトリの作成に失敗したのだ: %w", err)
	}

	result := &ImageResult{SessionID: r.opts.SessionID}
	for _, fileName := range targets {
		result.Requested++
		paths, err := r.generateFromFile(ctx, fileName)
		if err != nil {
			r.logger.Error("画像生成中にエラーが起きたのだ", "file_name", fileName, "error", err)
			result.Failed++
			continue
		}
		result.Generated += len(paths)
		result.ImagePaths = append(result.ImagePaths, paths...)
	}

	if r.store != nil {
		completed, err := r.store.CompletedImageCount(ctx, r.opts.SessionID)
		if err != nil {
			r.logger.Warn("完了画像数の集計に失敗したのだ", "error", err)
		} else if err := r.store.UpdateSessionStatus(ctx, r.opts.SessionID, domain.SessionRunning,
			map[string]any{"total_images_generated": completed}); err != nil {
			r.logger.Warn("セッションカウンターの更新に失敗したのだ", "error", err)
		}
	}

	r.logger.Info("画像生成ステージが完了したのだ",
		"requested", result.Requested, "generated", result.Generated, "failed", result.Failed)
	return result, nil
}

// generateFromFile はプロンプトファイル1件を画像化して、保存先パスの一覧を返すのだ。
func (r *ImageGenerateRunner) generateFromFile(ctx context.Context, fileName string) ([]string, error) {
	promptText, err := readFile(ctx, r.reader, filepath.Join(r.opts.ReformattedDir, fileName))
	if err != nil {
		return nil, err
	}
	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		return nil, fmt.Errorf("プロンプトファイルが空なのだ: %s", fileName)
	}

	timestamp := time.Now().Format("20060102_150405")
	base := domain.TruncateRunes(domain.SanitizeFilename(promptText), imageNamePromptLimit)

	// 行は1枚目の見込みファイル名で先に作り、保存後に実ファイル名へ確定させるのだ
	anticipated := fmt.Sprintf("%s_%s_1.png", base, timestamp)
	imageID := r.insertPendingImage(ctx, fileName, promptText, anticipated)

	taskID, output, err := r.backend.Generate(ctx, promptText)
	if err != nil {
		r.markFailed(ctx, imageID, err)
		return nil, err
	}
	r.recordTask(ctx, imageID, taskID)

	urls, err := imagegen.NormalizeOutput(output)
	if err != nil {
		r.markFailed(ctx, imageID, err)
		return nil, fmt.Errorf("生成APIの応答を解釈できなかったのだ: %w", err)
	}

	var saved []string
	for i, url := range urls {
		imageName := fmt.Sprintf("%s_%s_%d.png", base, timestamp, i+1)
		destPath := filepath.Join(r.opts.ImagesOutDir, imageName)

		meta, err := r.downloader.Download(ctx, url, destPath)
		if err != nil {
			r.markFailed(ctx, imageID, err)
			return saved, err
		}

		if r.store != nil && imageID != 0 {
			if err := r.store.UpdateImageCompleted(ctx, imageID, url, imageName, destPath,
				meta.FileSizeBytes, meta.Width, meta.Height); err != nil {
				r.logger.Warn("画像状態の更新に失敗したのだ", "image_id", imageID, "error", err)
			}
		}

		r.appendPromptLog(imageName, promptText)
		saved = append(saved, destPath)
	}

	r.logger.Info("画像化が完了したのだ", "file_name", fileName, "task_id", taskID, "images", len(saved))
	return saved, nil
}

// insertPendingImage は生成リクエストの pending 行を先に作っておくのだ。
// ファイル名は見込みの画像名で入れておき、保存後に実名へ更新されるのだ。
func (r *ImageGenerateRunner) insertPendingImage(ctx context.Context, fileName, promptText, imageName string) int64 {
	if r.store == nil {
		return 0
	}

	var reformattedID, promptID int64
	reformatted, err := r.store.FindReformattedByFileName(ctx, r.opts.SessionID, fileName)
	if err != nil {
		r.logger.Warn("再整形行の検索に失敗したのだ", "file_name", fileName, "error", err)
	} else if reformatted != nil {
		reformattedID = reformatted.ID
		promptID = reformatted.PromptID
	}

	imageID, err := r.store.InsertImage(ctx, &domain.GeneratedImage{
		ReformattedID: reformattedID,
		PromptID:      promptID,
		SessionID:     r.opts.SessionID,
		FileName:      imageName,
		FilePath:      filepath.Join(r.opts.ImagesOutDir, imageName),
		PromptUsed:    promptText,
	})
	if err != nil {
		r.logger.Warn("画像リクエストのDB記録に失敗したのだ", "file_name", fileName, "error", err)
		return 0
	}
	return imageID
}

// recordTask は払い出されたタスクIDと応答の要約を行へ書き戻すのだ。
func (r *ImageGenerateRunner) recordTask(ctx context.Context, imageID int64, taskID string) {
	if r.store == nil || imageID == 0 {
		return
	}
	apiResponse, err := json.Marshal(map[string]string{
		"prediction_id": taskID,
		"model":         r.opts.ImageModel,
		"status":        "started",
	})
	if err != nil {
		r.logger.Warn("API応答の整形に失敗したのだ", "error", err)
		return
	}
	if err := r.store.UpdateImageTask(ctx, imageID, taskID, string(apiResponse)); err != nil {
		r.logger.Warn("タスクIDの記録に失敗したのだ", "image_id", imageID, "error", err)
	}
}

func (r *ImageGenerateRunner) markFailed(ctx context.Context, imageID int64, cause error) {
	if r.store == nil || imageID == 0 {
		return
	}
	if err := r.store.MarkImageFailed(ctx, imageID, cause.Error()); err != nil {
		r.logger.Warn("画像状態の更新に失敗したのだ", "image_id", imageID, "error", err)
	}
}

// appendPromptLog は画像ファイル名と使用プロンプトの対応を追記するのだ。
// 画像フォルダだけ見ても元のプロンプトが分かるようにするためなのだ。
func (r *ImageGenerateRunner) appendPromptLog(imageName, promptText string) {
	logPath := filepath.Join(r.opts.ImagesOutDir, promptLogName)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("プロンプト対応表を開けなかったのだ", "path", logPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s: %s\n", imageName, promptText); err != nil {
		r.logger.Warn("プロンプト対応表への追記に失敗したのだ", "path", logPath, "error", err)
	}
}
