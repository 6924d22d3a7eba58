package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

var (
	// ErrTopicNotFound is returned when a write names a topic the catalog
	// does not contain.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrInvalidCount is returned for completed counts outside 0..MaxCount.
	ErrInvalidCount = errors.New("completed count out of range")
	// ErrInvalidStudent is returned for non-positive student ids.
	ErrInvalidStudent = errors.New("student id must be positive")
)

// Publisher is notified after a write has been persisted.
type Publisher interface {
	PublishChange(ctx context.Context, studentID int64, topicID int) error
}

type nopPublisher struct{}

func (nopPublisher) PublishChange(context.Context, int64, int) error { return nil }

// ServiceConfig holds dependencies for the progress service.
type ServiceConfig struct {
	Catalog   *catalog.Catalog
	Store     Store
	Events    EventLogger
	Publisher Publisher
	Now       func() time.Time
}

// Service merges catalog metadata with stored progress and applies writes.
type Service struct {
	catalog   *catalog.Catalog
	store     Store
	events    EventLogger
	publisher Publisher
	now       func() time.Time
}

// NewService creates a progress service. Missing dependencies default to an
// empty catalog, an in-memory store, and no-op events and publisher.
func NewService(cfg ServiceConfig) *Service {
	cat := cfg.Catalog
	if cat == nil {
		cat, _ = catalog.New(nil, nil)
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:   cat,
		store:     store,
		events:    events,
		publisher: publisher,
		now:       now,
	}
}

// Catalog returns the catalog the service serves.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// FetchAll returns every catalog topic merged with the student's progress,
// ordered by topic id. Topics without a record report zero progress.
func (s *Service) FetchAll(ctx context.Context, studentID int64) ([]TopicProgress, error) {
	if studentID <= 0 {
		return nil, ErrInvalidStudent
	}

	recs, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	topics := s.catalog.ListTopics()
	out := make([]TopicProgress, 0, len(topics))
	for _, t := range topics {
		completed := recs[t.ID].CompletedTasks
		out = append(out, TopicProgress{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Icon:        t.Icon,
			Progress:    Percent(completed, t.Tasks),
			Tasks:       t.Tasks,
			Completed:   completed,
			Difficulty:  t.Difficulty,
		})
	}
	return out, nil
}

// SetProgress stores completed for the student's topic and returns the
// recomputed percentage. The count is not clamped to the topic's task
// total; callers clamp to whatever total their view counts against.
func (s *Service) SetProgress(ctx context.Context, studentID int64, topicID, completed int) (Result, error) {
	if studentID <= 0 {
		return Result{}, ErrInvalidStudent
	}
	if completed < 0 || completed > MaxCount {
		return Result{}, ErrInvalidCount
	}
	topic, ok := s.catalog.Topic(topicID)
	if !ok {
		return Result{}, fmt.Errorf("topic %d: %w", topicID, ErrTopicNotFound)
	}

	pct := Percent(completed, topic.Tasks)
	if err := s.store.Upsert(ctx, Record{
		StudentID:          studentID,
		TopicID:            topicID,
		CompletedTasks:     completed,
		ProgressPercentage: pct,
		LastUpdated:        s.now(),
	}); err != nil {
		return Result{}, fmt.Errorf("save progress: %w", err)
	}

	slog.Info("progress updated",
		"student_id", studentID,
		"topic_id", topicID,
		"completed_tasks", completed,
		"progress", pct,
	)

	if err := s.events.LogEvent(ctx, Event{
		StudentID: studentID,
		TopicID:   topicID,
		EventType: EventProgressUpdated,
		Data: map[string]any{
			"completed_tasks": completed,
			"progress":        pct,
			"tasks":           topic.Tasks,
		},
	}); err != nil {
		slog.Warn("failed to log progress event", "topic_id", topicID, "error", err)
	}

	if err := s.publisher.PublishChange(ctx, studentID, topicID); err != nil {
		slog.Warn("failed to publish progress change", "topic_id", topicID, "error", err)
	}

	return Result{Progress: pct, CompletedTasks: completed}, nil
}

// HealthCheck reports whether the underlying store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}
