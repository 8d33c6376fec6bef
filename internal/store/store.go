package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL CHECK (role IN ('student', 'teacher')),
		grade_level TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subject TEXT NOT NULL,
		grade_level TEXT NOT NULL,
		time_limit INTEGER NOT NULL DEFAULT 0,
		questions_json TEXT NOT NULL,
		instructions_json TEXT NOT NULL DEFAULT '[]',
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		answers_json TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		submitted_at DATETIME NOT NULL,
		total_marks INTEGER NOT NULL DEFAULT 0,
		total_possible INTEGER NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		strengths_json TEXT NOT NULL DEFAULT '[]',
		weaknesses_json TEXT NOT NULL DEFAULT '[]',
		UNIQUE (student_id, exam_id)
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_student_time ON submissions (student_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_submissions_exam ON submissions (exam_id);

	CREATE TABLE IF NOT EXISTS monthly_reports (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		year INTEGER NOT NULL,
		exam_results_json TEXT NOT NULL,
		subject_progress_json TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		overall_percentage INTEGER NOT NULL,
		monthly_assessment TEXT NOT NULL,
		progress_evaluation TEXT NOT NULL,
		recommended_actions_json TEXT NOT NULL DEFAULT '[]',
		improvement INTEGER,
		created_at DATETIME NOT NULL,
		UNIQUE (student_id, month, year)
	);

	CREATE TABLE IF NOT EXISTS login_sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_login_sessions_expiry ON login_sessions (expires_at);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
