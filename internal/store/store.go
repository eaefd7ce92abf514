// Package store は、パイプライン全ステージが共有するSQLiteトラッキングDBを管理するのだ。
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store はパイプライン実行履歴を記録するデータベースハンドルなのだ。
// プロセス開始時に1度だけ開き、終了時に閉じるのだ。
type Store struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// Open はデータベースファイルを開き、スキーマを初期化します。
// ステージ間の同時実行はサポート外なので接続は1本に絞るのだ。
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("データベースディレクトリの作成に失敗したのだ: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗したのだ: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマの初期化に失敗したのだ: %w", err)
	}
	return s, nil
}

// Close はデータベース接続を閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}

// Path はデータベースファイルのパスを返します。
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipeline_sessions (
		session_id TEXT PRIMARY KEY,
		theme TEXT NOT NULL,
		session_timestamp DATETIME,
		base_output_dir TEXT,
		status TEXT DEFAULT 'running',
		total_prompts_generated INTEGER DEFAULT 0,
		total_prompts_approved INTEGER DEFAULT 0,
		total_images_generated INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS generated_prompts (
		prompt_id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		theme TEXT NOT NULL,
		prompt_text TEXT NOT NULL,
		prompt_type TEXT,
		approach_type TEXT,
		variation_style TEXT,
		file_name TEXT,
		file_path TEXT,
		character_count INTEGER,
		status TEXT DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES pipeline_sessions(session_id)
	);

	CREATE TABLE IF NOT EXISTS prompt_evaluations (
		evaluation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		iteration_number INTEGER NOT NULL,
		original_prompt TEXT NOT NULL,
		refined_prompt TEXT NOT NULL,
		evaluation_score TEXT NOT NULL,
		feedback TEXT,
		missing_elements TEXT,
		strength_areas TEXT,
		processing_time_seconds REAL,
		approved BOOLEAN DEFAULT FALSE,
		approved_file_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (prompt_id) REFERENCES generated_prompts(prompt_id),
		FOREIGN KEY (session_id) REFERENCES pipeline_sessions(session_id)
	);

	CREATE TABLE IF NOT EXISTS reformatted_prompts (
		reformatted_id INTEGER PRIMARY KEY AUTOINCREMENT,
		evaluation_id INTEGER NOT NULL,
		prompt_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		original_detailed_prompt TEXT NOT NULL,
		generator_optimized_prompt TEXT NOT NULL,
		character_count_before INTEGER,
		character_count_after INTEGER,
		compression_ratio REAL,
		file_name TEXT,
		file_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (evaluation_id) REFERENCES prompt_evaluations(evaluation_id),
		FOREIGN KEY (prompt_id) REFERENCES generated_prompts(prompt_id)
	);

	CREATE TABLE IF NOT EXISTS generated_images (
		image_id INTEGER PRIMARY KEY AUTOINCREMENT,
		reformatted_id INTEGER NOT NULL,
		prompt_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		generator_task_id TEXT,
		image_file_name TEXT,
		image_file_path TEXT,
		generator_prompt_used TEXT,
		api_response TEXT,
		generation_status TEXT DEFAULT 'pending',
		generation_timestamp DATETIME,
		image_url TEXT,
		file_size_bytes INTEGER,
		image_width INTEGER,
		image_height INTEGER,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (reformatted_id) REFERENCES reformatted_prompts(reformatted_id),
		FOREIGN KEY (prompt_id) REFERENCES generated_prompts(prompt_id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateSchema()
}

// migrateSchema は旧バージョンのデータベースに後付けされた列を補うのだ。
// 既に列があれば duplicate column エラーになるだけなので無視するのだ。
func (s *Store) migrateSchema() error {
	migrations := []string{
		`ALTER TABLE generated_prompts ADD COLUMN status TEXT DEFAULT 'pending'`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return err
		}
		s.logger.Info("スキーママイグレーションを適用したのだ", "statement", m)
	}
	return nil
}
