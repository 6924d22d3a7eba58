package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SnapshotCache is the subset of the Redis cache used by CachedStore.
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CachedStore caches ListByStudent results under a per-student generation
// that every write bumps, so a read racing a write can only fill a
// snapshot key no later read will look up. Cache failures fall through to
// the underlying store.
type CachedStore struct {
	next  Store
	cache SnapshotCache
	ttl   time.Duration
}

// NewCachedStore wraps next with a read-through cache.
func NewCachedStore(next Store, cache SnapshotCache, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl}
}

func generationKey(studentID int64) string {
	return fmt.Sprintf("progress:student:%d:gen", studentID)
}

func snapshotKey(studentID, gen int64) string {
	return fmt.Sprintf("progress:student:%d:%d", studentID, gen)
}

func (s *CachedStore) Upsert(ctx context.Context, rec Record) error {
	if err := s.next.Upsert(ctx, rec); err != nil {
		return err
	}
	gen, err := s.cache.Incr(ctx, generationKey(rec.StudentID))
	if err != nil {
		slog.Warn("progress cache invalidation failed", "student_id", rec.StudentID, "error", err)
		return nil
	}
	if err := s.cache.Delete(ctx, snapshotKey(rec.StudentID, gen-1)); err != nil {
		slog.Debug("progress cache cleanup failed", "student_id", rec.StudentID, "error", err)
	}
	return nil
}

func (s *CachedStore) ListByStudent(ctx context.Context, studentID int64) (map[int]Record, error) {
	gen, err := s.cache.Counter(ctx, generationKey(studentID))
	if err != nil {
		slog.Warn("progress cache read failed", "student_id", studentID, "error", err)
		return s.next.ListByStudent(ctx, studentID)
	}
	key := snapshotKey(studentID, gen)

	var cached []Record
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		slog.Warn("progress cache read failed", "student_id", studentID, "error", err)
	}
	if hit {
		out := make(map[int]Record, len(cached))
		for _, rec := range cached {
			out[rec.TopicID] = rec
		}
		return out, nil
	}

	recs, err := s.next.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	list := make([]Record, 0, len(recs))
	for _, rec := range recs {
		list = append(list, rec)
	}
	if err := s.cache.SetJSON(ctx, key, list, s.ttl); err != nil {
		slog.Warn("progress cache write failed", "student_id", studentID, "error", err)
	}

	return recs, nil
}

func (s *CachedStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}
