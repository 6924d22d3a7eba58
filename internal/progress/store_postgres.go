package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-progress/internal/platform/database"
)

// PostgresSchema creates the tables used by PostgresStore and
// PostgresEventLogger.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS student_progress (
		student_id          BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		topic_id            INTEGER NOT NULL,
		completed_tasks     INTEGER NOT NULL DEFAULT 0,
		progress_percentage INTEGER NOT NULL DEFAULT 0,
		last_updated        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (student_id, topic_id)
	)`,
	`CREATE TABLE IF NOT EXISTS progress_events (
		id         BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL,
		topic_id   INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS progress_events_student_idx ON progress_events (student_id, created_at)`,
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store and makes
// sure its tables exist.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := database.Migrate(ctx, pool, PostgresSchema...); err != nil {
		return nil, fmt.Errorf("migrate progress schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if rec.StudentID <= 0 {
		return fmt.Errorf("student_id is required")
	}

	lastUpdated := rec.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Students are created on first write.
		if _, err := tx.Exec(ctx,
			`INSERT INTO students (id, name)
			 VALUES ($1, $2)
			 ON CONFLICT (id) DO NOTHING`,
			rec.StudentID,
			fmt.Sprintf("Student %d", rec.StudentID),
		); err != nil {
			return fmt.Errorf("ensure student: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO student_progress (student_id, topic_id, completed_tasks, progress_percentage, last_updated)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (student_id, topic_id)
			 DO UPDATE SET completed_tasks = EXCLUDED.completed_tasks,
			               progress_percentage = EXCLUDED.progress_percentage,
			               last_updated = EXCLUDED.last_updated`,
			rec.StudentID,
			rec.TopicID,
			rec.CompletedTasks,
			rec.ProgressPercentage,
			lastUpdated,
		); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID int64) (map[int]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT student_id, topic_id, completed_tasks, progress_percentage, last_updated
		 FROM student_progress
		 WHERE student_id = $1
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
		if err := rows.Scan(
			&rec.StudentID,
			&rec.TopicID,
			&rec.CompletedTasks,
			&rec.ProgressPercentage,
			&rec.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out[rec.TopicID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
