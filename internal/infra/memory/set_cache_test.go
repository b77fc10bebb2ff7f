package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exam-delivery-service/internal/domain"
)

func TestSetCacheCaches(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewStore()}
	if _, err := backend.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("create set: %v", err)
	}
	cache := NewSetCache(backend, time.Minute)

	if _, err := cache.GetSet(ctx, "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if backend.calls.Load() != 1 {
		t.Fatalf("expected backend once, got %d", backend.calls.Load())
	}

	if _, err := cache.GetSet(ctx, "set-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if backend.calls.Load() != 1 {
		t.Fatalf("expected cache hit, backend calls %d", backend.calls.Load())
	}
}

func TestSetCacheEvictsOnWrite(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewStore()}
	if _, err := backend.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("create set: %v", err)
	}
	cache := NewSetCache(backend, time.Minute)

	if _, err := cache.GetSet(ctx, "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if err := cache.RenameSet(ctx, "set-1", "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	set, err := cache.GetSet(ctx, "set-1")
	if err != nil {
		t.Fatalf("get after rename: %v", err)
	}
	if set.Name != "Renamed" || backend.calls.Load() != 2 {
		t.Fatalf("expected reload after rename, name=%q calls=%d", set.Name, backend.calls.Load())
	}

	if err := cache.DeleteSet(ctx, "set-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.GetSet(ctx, "set-1"); err != domain.ErrSetNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSetCacheExpires(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: NewStore()}
	if _, err := backend.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("create set: %v", err)
	}
	cache := NewSetCache(backend, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetSet(ctx, "set-1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetSet(ctx, "set-1")
	if backend.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, calls=%d", backend.calls.Load())
	}
}

func TestSetCacheDropsReadRacingWrite(t *testing.T) {
	ctx := context.Background()
	backend := &blockingStore{Store: NewStore(), read: make(chan struct{}), release: make(chan struct{})}
	if _, err := backend.Store.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("create set: %v", err)
	}
	cache := NewSetCache(backend, time.Minute)

	done := make(chan domain.Set)
	go func() {
		set, _ := cache.GetSet(ctx, "set-1")
		done <- set
	}()
	<-backend.read
	if err := cache.RenameSet(ctx, "set-1", "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	close(backend.release)
	if stale := <-done; stale.Name != "Fundamentals" {
		t.Fatalf("in-flight read should see the old name, got %q", stale.Name)
	}

	set, err := cache.GetSet(ctx, "set-1")
	if err != nil {
		t.Fatalf("get after rename: %v", err)
	}
	if set.Name != "Renamed" {
		t.Fatalf("cache kept the stale set %q after the write", set.Name)
	}
}

// blockingStore pauses the first GetSet after it has read the set.
type blockingStore struct {
	*Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) GetSet(ctx context.Context, setID string) (domain.Set, error) {
	set, err := s.Store.GetSet(ctx, setID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return set, err
}

type countingStore struct {
	*Store
	calls atomic.Int32
}

func (s *countingStore) GetSet(ctx context.Context, setID string) (domain.Set, error) {
	s.calls.Add(1)
	return s.Store.GetSet(ctx, setID)
}

func sampleSet() domain.Set {
	return domain.Set{
		ID:   "set-1",
		Name: "Fundamentals",
		Questions: domain.QuestionList{
			domain.MCQQuestion{
				ID:           "q1",
				Text:         "What is 2 + 2?",
				Options:      []string{"3", "4", "5"},
				CorrectIndex: 1,
			},
		},
	}
}
