package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

// fakeCache is an in-process SnapshotCache that round-trips through JSON
// like the Redis-backed cache does.
type fakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	counters map[string]int64
	gets     int
	hits     int
	deletes  int
	failGet  bool
	failSet  bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte), counters: make(map[string]int64)}
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet {
		return false, errors.New("cache down")
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache down")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

func (c *fakeCache) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return 0, errors.New("cache down")
	}
	return c.counters[key], nil
}

func (c *fakeCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return 0, errors.New("cache down")
	}
	c.counters[key]++
	return c.counters[key], nil
}

func (c *fakeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// countingStore counts ListByStudent calls on the wrapped store.
type countingStore struct {
	progress.Store
	lists int
}

func (s *countingStore) ListByStudent(ctx context.Context, studentID int64) (map[int]progress.Record, error) {
	s.lists++
	return s.Store.ListByStudent(ctx, studentID)
}

func TestCachedStore_Contract(t *testing.T) {
	storeContract(t, progress.NewCachedStore(progress.NewMemoryStore(), newFakeCache(), time.Minute))
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: progress.NewMemoryStore()}
	cache := newFakeCache()
	store := progress.NewCachedStore(backing, cache, time.Minute)

	if err := store.Upsert(ctx, progress.Record{StudentID: 1, TopicID: 2, CompletedTasks: 4, ProgressPercentage: 27}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	for range 3 {
		recs, err := store.ListByStudent(ctx, 1)
		if err != nil {
			t.Fatalf("ListByStudent() error = %v", err)
		}
		if recs[2].CompletedTasks != 4 {
			t.Fatalf("CompletedTasks = %d, want 4", recs[2].CompletedTasks)
		}
	}
	if backing.lists != 1 {
		t.Errorf("backing store lists = %d, want 1", backing.lists)
	}
	if cache.hits != 2 {
		t.Errorf("cache hits = %d, want 2", cache.hits)
	}

	// A write invalidates the snapshot.
	if err := store.Upsert(ctx, progress.Record{StudentID: 1, TopicID: 2, CompletedTasks: 5, ProgressPercentage: 33}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	recs, _ := store.ListByStudent(ctx, 1)
	if recs[2].CompletedTasks != 5 {
		t.Errorf("CompletedTasks after write = %d, want 5", recs[2].CompletedTasks)
	}
	if backing.lists != 2 {
		t.Errorf("backing store lists = %d, want 2 after invalidation", backing.lists)
	}
}

func TestCachedStore_CacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: progress.NewMemoryStore()}
	cache := newFakeCache()
	cache.failGet = true
	cache.failSet = true
	store := progress.NewCachedStore(backing, cache, time.Minute)

	_ = store.Upsert(ctx, progress.Record{StudentID: 1, TopicID: 1, CompletedTasks: 1})

	recs, err := store.ListByStudent(ctx, 1)
	if err != nil {
		t.Fatalf("ListByStudent() error = %v, want fall through", err)
	}
	if len(recs) != 1 {
		t.Errorf("ListByStudent() = %d records, want 1", len(recs))
	}
}

// pausingStore blocks the first ListByStudent after it has read from the
// wrapped store, until release is closed.
type pausingStore struct {
	progress.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) ListByStudent(ctx context.Context, studentID int64) (map[int]progress.Record, error) {
	recs, err := s.Store.ListByStudent(ctx, studentID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return recs, err
}

func TestCachedStore_ReadRacingWrite(t *testing.T) {
	ctx := context.Background()
	backing := &pausingStore{
		Store:   progress.NewMemoryStore(),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := newFakeCache()
	store := progress.NewCachedStore(backing, cache, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := store.ListByStudent(ctx, 1)
		done <- err
	}()

	<-backing.read
	if err := store.Upsert(ctx, progress.Record{StudentID: 1, TopicID: 3, CompletedTasks: 9, ProgressPercentage: 50}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	close(backing.release)
	if err := <-done; err != nil {
		t.Fatalf("racing ListByStudent() error = %v", err)
	}

	recs, err := store.ListByStudent(ctx, 1)
	if err != nil {
		t.Fatalf("ListByStudent() error = %v", err)
	}
	if recs[3].CompletedTasks != 9 {
		t.Errorf("CompletedTasks = %d, want 9 after the write", recs[3].CompletedTasks)
	}
}

func TestCachedStore_WriteDropsOldSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := progress.NewCachedStore(progress.NewMemoryStore(), cache, time.Minute)

	if _, err := store.ListByStudent(ctx, 1); err != nil {
		t.Fatalf("ListByStudent() error = %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cached snapshots = %d, want 1", cache.Len())
	}
	if err := store.Upsert(ctx, progress.Record{StudentID: 1, TopicID: 1, CompletedTasks: 2}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cached snapshots after write = %d, want 0", cache.Len())
	}
}
