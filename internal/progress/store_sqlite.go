package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS student_progress (
		student_id          INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		topic_id            INTEGER NOT NULL,
		completed_tasks     INTEGER NOT NULL DEFAULT 0,
		progress_percentage INTEGER NOT NULL DEFAULT 0,
		last_updated        INTEGER NOT NULL,
		PRIMARY KEY (student_id, topic_id)
	)`,
}

// SQLiteStore is a single-file Store for single-node deployments.
// Timestamps are stored as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the SQLite database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	for i, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration statement %d: %w", i, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if rec.StudentID <= 0 {
		return fmt.Errorf("student_id is required")
	}

	lastUpdated := rec.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO students (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		rec.StudentID,
		fmt.Sprintf("Student %d", rec.StudentID),
		time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("ensure student: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO student_progress (student_id, topic_id, completed_tasks, progress_percentage, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (student_id, topic_id)
		 DO UPDATE SET completed_tasks = excluded.completed_tasks,
		               progress_percentage = excluded.progress_percentage,
		               last_updated = excluded.last_updated`,
		rec.StudentID,
		rec.TopicID,
		rec.CompletedTasks,
		rec.ProgressPercentage,
		lastUpdated.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListByStudent(ctx context.Context, studentID int64) (map[int]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, topic_id, completed_tasks, progress_percentage, last_updated
		 FROM student_progress
		 WHERE student_id = ?
		 ORDER BY topic_id`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := make(map[int]Record)
	for rows.Next() {
		var rec Record
		var updated int64
		if err := rows.Scan(
			&rec.StudentID,
			&rec.TopicID,
			&rec.CompletedTasks,
			&rec.ProgressPercentage,
			&updated,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.LastUpdated = time.Unix(0, updated)
		out[rec.TopicID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	return out, nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
