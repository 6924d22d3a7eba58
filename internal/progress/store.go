package progress

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const dbTimeout = 5 * time.Second

// Store persists progress records. Writes are last-write-wins.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	ListByStudent(ctx context.Context, studentID int64) (map[int]Record, error)
	HealthCheck(ctx context.Context) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[int64]map[int]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]map[int]Record),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if rec.StudentID <= 0 {
		return fmt.Errorf("student_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now()
	}
	byTopic, ok := s.records[rec.StudentID]
	if !ok {
		byTopic = make(map[int]Record)
		s.records[rec.StudentID] = byTopic
	}
	byTopic[rec.TopicID] = rec
	return nil
}

func (s *MemoryStore) ListByStudent(_ context.Context, studentID int64) (map[int]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]Record, len(s.records[studentID]))
	for id, rec := range s.records[studentID] {
		out[id] = rec
	}
	return out, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}
