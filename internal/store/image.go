package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

// InsertImage は画像生成リクエストを pending 状態で記録します。
func (s *Store) InsertImage(ctx context.Context, img *domain.GeneratedImage) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_images
		(reformatted_id, prompt_id, session_id, generator_task_id, image_file_name,
		 image_file_path, generator_prompt_used, api_response, generation_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ReformattedID, img.PromptID, img.SessionID, img.TaskID, img.FileName,
		img.FilePath, img.PromptUsed, img.APIResponse, domain.ImagePending)
	if err != nil {
		return 0, fmt.Errorf("画像レコードの登録に失敗したのだ: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("画像IDの取得に失敗したのだ: %w", err)
	}
	s.logger.Info("画像レコードを登録したのだ", "image_id", id, "task_id", img.TaskID)
	return id, nil
}

// UpdateImageTask はAPI呼び出し直後にタスクIDと応答の要約を書き込みます。
// ダウンロード前に倒れてもタスクIDでAPI側を追跡できるようにするのだ。
func (s *Store) UpdateImageTask(ctx context.Context, imageID int64, taskID, apiResponse string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generated_images
		SET generator_task_id = ?, api_response = ?
		WHERE image_id = ?`,
		taskID, apiResponse, imageID)
	if err != nil {
		return fmt.Errorf("タスクIDの記録に失敗したのだ: %w", err)
	}
	s.logger.Info("タスクIDを記録したのだ", "image_id", imageID, "task_id", taskID)
	return nil
}

// UpdateImageCompleted は保存した画像の実ファイル名とメタデータで行を確定させます。
func (s *Store) UpdateImageCompleted(ctx context.Context, imageID int64, imageURL, fileName, filePath string,
	fileSize int64, width, height int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generated_images
		SET generation_status = ?, generation_timestamp = ?, image_url = ?,
		    image_file_name = ?, image_file_path = ?,
		    file_size_bytes = ?, image_width = ?, image_height = ?, error_message = ''
		WHERE image_id = ?`,
		domain.ImageCompleted, time.Now(), imageURL, fileName, filePath,
		fileSize, width, height, imageID)
	if err != nil {
		return fmt.Errorf("画像完了の記録に失敗したのだ: %w", err)
	}
	s.logger.Info("画像完了を記録したのだ", "image_id", imageID, "file_name", fileName)
	return nil
}

// MarkImageFailed は失敗理由を残して行を failed に落とします。
func (s *Store) MarkImageFailed(ctx context.Context, imageID int64, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generated_images
		SET generation_status = ?, generation_timestamp = ?, error_message = ?
		WHERE image_id = ?`,
		domain.ImageFailed, time.Now(), errorMessage, imageID)
	if err != nil {
		return fmt.Errorf("画像失敗の記録に失敗したのだ: %w", err)
	}
	s.logger.Info("画像失敗を記録したのだ", "image_id", imageID)
	return nil
}

// GetImage は画像リクエスト1件の現在の記録を返します。
func (s *Store) GetImage(ctx context.Context, imageID int64) (*domain.GeneratedImage, error) {
	img := &domain.GeneratedImage{}
	err := s.db.QueryRowContext(ctx, `
		SELECT image_id, reformatted_id, prompt_id, session_id, generator_task_id,
		       image_file_name, image_file_path, generator_prompt_used, api_response,
		       generation_status, COALESCE(image_url, ''), COALESCE(file_size_bytes, 0),
		       COALESCE(image_width, 0), COALESCE(image_height, 0), COALESCE(error_message, '')
		FROM generated_images WHERE image_id = ?`, imageID).Scan(
		&img.ID, &img.ReformattedID, &img.PromptID, &img.SessionID, &img.TaskID,
		&img.FileName, &img.FilePath, &img.PromptUsed, &img.APIResponse,
		&img.Status, &img.URL, &img.FileSizeBytes, &img.Width, &img.Height,
		&img.ErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("画像レコードの取得に失敗したのだ: %w", err)
	}
	return img, nil
}

// CompletedImageCount はセッション内で completed になった画像の数を返します。
func (s *Store) CompletedImageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM generated_images
		WHERE session_id = ? AND generation_status = ?`,
		sessionID, domain.ImageCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("画像数の集計に失敗したのだ: %w", err)
	}
	return count, nil
}
