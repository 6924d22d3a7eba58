package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventProgressUpdated marks a completed-count write.
const EventProgressUpdated = "progress_updated"

// Event is one row of a student's progress history.
type Event struct {
	StudentID int64
	TopicID   int
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// stamped checks the fields every history row needs and fills in the
// timestamp when the caller left it empty.
func (e Event) stamped() (Event, error) {
	if e.EventType == "" {
		return e, errors.New("progress event: type is empty")
	}
	if e.StudentID <= 0 {
		return e, fmt.Errorf("progress event %s: student id %d", e.EventType, e.StudentID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return e, nil
}

// EventLogger records progress history after a write is stored.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger drops history; it is the default when no database is configured.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps the history in process.
type MemoryEventLogger struct {
	mu  sync.Mutex
	log []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	e, err := event.stamped()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, e)
	return nil
}

// Events returns the recorded history, oldest first.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.log)
}

// PostgresEventLogger appends history rows to progress_events.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

const insertEventSQL = `INSERT INTO progress_events (student_id, topic_id, event_type, data, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)`

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return errors.New("progress event: no database pool")
	}
	e, err := event.stamped()
	if err != nil {
		return err
	}

	data := []byte("{}")
	if len(e.Data) > 0 {
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("progress event %s: encode data: %w", e.EventType, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx, insertEventSQL, e.StudentID, e.TopicID, e.EventType, string(data), e.CreatedAt); err != nil {
		return fmt.Errorf("progress event %s: insert: %w", e.EventType, err)
	}

	slog.Debug("progress event stored", "student_id", e.StudentID, "topic_id", e.TopicID, "type", e.EventType)
	return nil
}
