package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

// sessionColumns は動的UPDATEで許可する列名のホワイトリストなのだ。
// SQLインジェクション防止の境界なので、後から列を足すときもここを通すのだ。
var sessionColumns = map[string]struct{}{
	"total_prompts_generated": {},
	"total_prompts_approved":  {},
	"total_images_generated":  {},
	"base_output_dir":         {},
	"theme":                   {},
}

// CreateSession は新しいパイプラインセッションを記録します。
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	if err := domain.ValidateSessionID(sess.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_sessions
		(session_id, theme, session_timestamp, base_output_dir, status)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Theme, sess.Timestamp, sess.BaseOutputDir, domain.SessionRunning)
	if err != nil {
		return fmt.Errorf("セッションの登録に失敗したのだ: %w", err)
	}
	s.logger.Info("パイプラインセッションを作成したのだ", "session_id", sess.ID, "theme", sess.Theme)
	return nil
}

// GetSession はセッションを1件取得します。見つからなければ nil を返すのだ。
func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, theme, session_timestamp, base_output_dir, status,
		       total_prompts_generated, total_prompts_approved, total_images_generated
		FROM pipeline_sessions WHERE session_id = ?`, sessionID)

	var sess domain.Session
	var ts sql.NullTime
	var baseDir sql.NullString
	err := row.Scan(&sess.ID, &sess.Theme, &ts, &baseDir, &sess.Status,
		&sess.TotalPromptsGenerated, &sess.TotalPromptsApproved, &sess.TotalImagesGenerated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗したのだ: %w", err)
	}
	sess.Timestamp = ts.Time
	sess.BaseOutputDir = baseDir.String
	return &sess, nil
}

// UpdateSessionStatus はセッションの状態と統計カウンターを更新します。
// counters のキーはホワイトリスト外なら警告して無視するのだ。
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID, status string, counters map[string]any) error {
	setClauses := make([]string, 0, len(counters)+2)
	values := make([]any, 0, len(counters)+3)
	for col, val := range counters {
		if _, ok := sessionColumns[col]; !ok {
			s.logger.Warn("ホワイトリスト外の列名を拒否したのだ", "column", col)
			continue
		}
		setClauses = append(setClauses, col+" = ?")
		values = append(values, val)
	}
	setClauses = append(setClauses, "status = ?", "updated_at = ?")
	values = append(values, status, time.Now(), sessionID)

	query := "UPDATE pipeline_sessions SET "
	for i, c := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += " WHERE session_id = ?"

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("セッション状態の更新に失敗したのだ: %w", err)
	}
	s.logger.Info("セッション状態を更新したのだ", "session_id", sessionID, "status", status)
	return nil
}

// SessionSummary はセッション全体のステージ別集計を返します。
// セッションが存在しなければ nil を返すのだ。
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT gp.prompt_id),
		       COUNT(DISTINCT CASE WHEN pe.approved = 1 THEN pe.prompt_id END),
		       COUNT(DISTINCT rp.reformatted_id),
		       COUNT(DISTINCT gi.image_id),
		       COUNT(DISTINCT CASE WHEN gi.generation_status = 'completed' THEN gi.image_id END)
		FROM pipeline_sessions ps
		LEFT JOIN generated_prompts gp ON ps.session_id = gp.session_id
		LEFT JOIN prompt_evaluations pe ON gp.prompt_id = pe.prompt_id
		LEFT JOIN reformatted_prompts rp ON pe.evaluation_id = rp.evaluation_id
		LEFT JOIN generated_images gi ON rp.reformatted_id = gi.reformatted_id
		WHERE ps.session_id = ?`, sessionID)

	summary := &domain.SessionSummary{Session: *sess}
	if err := row.Scan(&summary.TotalPrompts, &summary.ApprovedPrompts,
		&summary.ReformattedPrompts, &summary.TotalImages, &summary.SuccessfulImages); err != nil {
		return nil, fmt.Errorf("セッション集計の取得に失敗したのだ: %w", err)
	}
	return summary, nil
}
