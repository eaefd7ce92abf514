package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/parser"
)

// InsertEvaluation は審査1イテレーションの結果を記録します。
// 欠落要素と強み領域はJSONテキストとして保存するのだ。
func (s *Store) InsertEvaluation(ctx context.Context, e *domain.Evaluation) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_evaluations
		(prompt_id, session_id, iteration_number, original_prompt, refined_prompt,
		 evaluation_score, feedback, missing_elements, strength_areas,
		 processing_time_seconds, approved, approved_file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PromptID, e.SessionID, e.IterationNumber, e.OriginalPrompt, e.RefinedPrompt,
		e.Score, e.Feedback, marshalList(e.MissingElements), marshalList(e.StrengthAreas),
		e.ProcessingTime, e.Approved, e.ApprovedFilePath)
	if err != nil {
		return 0, fmt.Errorf("審査結果の登録に失敗したのだ: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("審査IDの取得に失敗したのだ: %w", err)
	}
	s.logger.Info("審査結果を登録したのだ", "evaluation_id", id, "prompt_id", e.PromptID, "score", e.Score)
	return id, nil
}

// FindApprovedEvaluation は承認済みファイル名から審査IDとプロンプトIDを引きます。
// まず承認接頭辞を外した名前で完全一致を試し、だめならタイムスタンプ付き
// ファイル名のパターンからLIKE検索でゆるく探すのだ。見つからなければ両方0なのだ。
func (s *Store) FindApprovedEvaluation(ctx context.Context, sessionID, approvedFileName string) (evaluationID, promptID int64, err error) {
	originalName := trimApprovedPrefix(approvedFileName)

	err = s.db.QueryRowContext(ctx, `
		SELECT pe.evaluation_id, pe.prompt_id
		FROM prompt_evaluations pe
		JOIN generated_prompts gp ON pe.prompt_id = gp.prompt_id
		WHERE pe.session_id = ? AND gp.file_name = ? AND pe.approved = 1
		ORDER BY pe.created_at DESC LIMIT 1`, sessionID, originalName).Scan(&evaluationID, &promptID)
	if err == nil {
		return evaluationID, promptID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("承認済み審査の検索に失敗したのだ: %w", err)
	}

	m := parser.TimestampedFileRegex.FindStringSubmatch(originalName)
	if m == nil {
		return 0, 0, nil
	}
	likePattern := m[1] + "_%_" + m[2] + ".txt"
	err = s.db.QueryRowContext(ctx, `
		SELECT pe.evaluation_id, pe.prompt_id
		FROM prompt_evaluations pe
		JOIN generated_prompts gp ON pe.prompt_id = gp.prompt_id
		WHERE pe.session_id = ? AND gp.file_name LIKE ? AND pe.approved = 1
		ORDER BY pe.created_at DESC LIMIT 1`, sessionID, likePattern).Scan(&evaluationID, &promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("承認済み審査のあいまい検索に失敗したのだ: %w", err)
	}
	return evaluationID, promptID, nil
}

func trimApprovedPrefix(name string) string {
	const prefix = "approved_"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}
