package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

// InsertPrompt は生成されたプロンプトを記録し、払い出されたIDを返します。
// 文字数はここで計算して保存するのだ。
func (s *Store) InsertPrompt(ctx context.Context, p *domain.Prompt) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_prompts
		(session_id, theme, prompt_text, prompt_type, approach_type,
		 variation_style, file_name, file_path, character_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Theme, p.Text, p.Type, p.ApproachType,
		p.VariationStyle, p.FileName, p.FilePath, len(p.Text))
	if err != nil {
		return 0, fmt.Errorf("プロンプトの登録に失敗したのだ: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("プロンプトIDの取得に失敗したのだ: %w", err)
	}
	s.logger.Info("プロンプトを登録したのだ", "prompt_id", id, "file_name", p.FileName)
	return id, nil
}

// PromptsForSession はセッションの全プロンプトを作成順で返します。
func (s *Store) PromptsForSession(ctx context.Context, sessionID string) ([]domain.Prompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id, session_id, theme, prompt_text, prompt_type,
		       approach_type, variation_style, file_name, file_path,
		       character_count, status, created_at
		FROM generated_prompts
		WHERE session_id = ?
		ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("プロンプト一覧の取得に失敗したのだ: %w", err)
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		var p domain.Prompt
		var approach, variation, fileName, filePath sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Theme, &p.Text, &p.Type,
			&approach, &variation, &fileName, &filePath,
			&p.CharacterCount, &p.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("プロンプト行の読み取りに失敗したのだ: %w", err)
		}
		p.ApproachType = approach.String
		p.VariationStyle = variation.String
		p.FileName = fileName.String
		p.FilePath = filePath.String
		p.CreatedAt = createdAt.Time
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// FindPromptIDByFileName はセッション内のファイル名からプロンプトIDを引きます。
// 一致がなければ 0 を返すのだ (未連携ファイルは致命傷にしない契約なのだ)。
func (s *Store) FindPromptIDByFileName(ctx context.Context, sessionID, fileName string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT prompt_id FROM generated_prompts
		WHERE session_id = ? AND file_name = ?`, sessionID, fileName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("プロンプトIDの検索に失敗したのだ: %w", err)
	}
	return id, nil
}

// UpdatePromptStatus はプロンプトの審査状態を更新します。
func (s *Store) UpdatePromptStatus(ctx context.Context, promptID int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generated_prompts SET status = ?, updated_at = ? WHERE prompt_id = ?`,
		status, time.Now(), promptID)
	if err != nil {
		return fmt.Errorf("プロンプト状態の更新に失敗したのだ: %w", err)
	}
	return nil
}

// FileNamesForSession はセッションに記録された生プロンプトのファイル名一覧を返すのだ。
func (s *Store) FileNamesForSession(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name FROM generated_prompts
		WHERE session_id = ? AND file_name IS NOT NULL`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ファイル名一覧の取得に失敗したのだ: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// marshalList は文字列リストをDB格納用のJSONテキストへ変換するのだ。
func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}
