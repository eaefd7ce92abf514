package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/parser"
)

// InsertReformatted は再整形済みプロンプトを記録します。
// 前後の文字数と圧縮率はここで計算するのだ。
func (s *Store) InsertReformatted(ctx context.Context, r *domain.ReformattedPrompt) (int64, error) {
	before := len(r.OriginalDetailed)
	after := len(r.Optimized)
	ratio := parser.CompressionRatio(before, after)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reformatted_prompts
		(evaluation_id, prompt_id, session_id, original_detailed_prompt,
		 generator_optimized_prompt, character_count_before, character_count_after,
		 compression_ratio, file_name, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EvaluationID, r.PromptID, r.SessionID, r.OriginalDetailed,
		r.Optimized, before, after, ratio, r.FileName, r.FilePath)
	if err != nil {
		return 0, fmt.Errorf("再整形プロンプトの登録に失敗したのだ: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("再整形IDの取得に失敗したのだ: %w", err)
	}
	s.logger.Info("再整形プロンプトを登録したのだ", "reformatted_id", id, "compression_ratio", ratio)
	return id, nil
}

// FindReformattedByFileName はセッション内のファイル名から再整形レコードを引きます。
// 見つからなければ nil を返すのだ。
func (s *Store) FindReformattedByFileName(ctx context.Context, sessionID, fileName string) (*domain.ReformattedPrompt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT reformatted_id, evaluation_id, prompt_id, session_id,
		       original_detailed_prompt, generator_optimized_prompt,
		       character_count_before, character_count_after, compression_ratio,
		       file_name, file_path
		FROM reformatted_prompts
		WHERE session_id = ? AND file_name = ?`, sessionID, fileName)

	var r domain.ReformattedPrompt
	var name, path sql.NullString
	err := row.Scan(&r.ID, &r.EvaluationID, &r.PromptID, &r.SessionID,
		&r.OriginalDetailed, &r.Optimized,
		&r.CharCountBefore, &r.CharCountAfter, &r.CompressionRatio,
		&name, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("再整形プロンプトの検索に失敗したのだ: %w", err)
	}
	r.FileName = name.String
	r.FilePath = path.String
	return &r, nil
}
