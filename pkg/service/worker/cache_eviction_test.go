package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/repository/memory"
	"github.com/db4dd/db4dd/pkg/service/cache"
	"github.com/db4dd/db4dd/pkg/service/worker"
	"github.com/m-mizutani/gt"
)

type mockEvictor struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
	err    error
}

func (m *mockEvictor) EvictOlderThan(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.maxAge = maxAge
	return 0, m.err
}

func (m *mockEvictor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCacheEvictionWorkerRunsPeriodically(t *testing.T) {
	ev := &mockEvictor{}
	w, err := worker.NewCacheEvictionWorker(ev, 24*time.Hour, 20*time.Millisecond)
	gt.NoError(t, err).Required()

	w.Start(context.Background())
	time.Sleep(110 * time.Millisecond)
	w.Stop()

	gt.Number(t, ev.callCount()).GreaterOrEqual(3)
	gt.Value(t, ev.maxAge).Equal(24 * time.Hour)

	// no more runs after Stop
	n := ev.callCount()
	time.Sleep(50 * time.Millisecond)
	gt.Value(t, ev.callCount()).Equal(n)
}

func TestCacheEvictionWorkerSurvivesErrors(t *testing.T) {
	ev := &mockEvictor{err: errors.New("store unavailable")}
	w, err := worker.NewCacheEvictionWorker(ev, time.Hour, 10*time.Millisecond)
	gt.NoError(t, err).Required()

	w.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	w.Stop()

	gt.Number(t, ev.callCount()).GreaterOrEqual(2)
}

func TestCacheEvictionWorkerStopsOnContextCancel(t *testing.T) {
	ev := &mockEvictor{}
	w, err := worker.NewCacheEvictionWorker(ev, time.Hour, time.Hour)
	gt.NoError(t, err).Required()

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCacheEvictionWorkerEvictsStaleEntries(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{time.Hour, 10 * 24 * time.Hour} {
		_, err := repo.Cache().Put(ctx, &model.CacheEntry{
			Fingerprint: string(rune('a' + i)),
			Model:       "gpt-4o-mini",
			Response:    "{}",
			StoredAt:    now.Add(-age),
		})
		gt.NoError(t, err).Required()
	}

	svc := cache.New(repo.Cache(), cache.WithClock(func() time.Time { return now }))
	w, err := worker.NewCacheEvictionWorker(svc, 7*24*time.Hour, time.Hour)
	gt.NoError(t, err).Required()

	w.Start(ctx)
	defer w.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := repo.Cache().Count(ctx)
		gt.NoError(t, err).Required()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stale entry was not evicted")
}

func TestNewCacheEvictionWorkerValidates(t *testing.T) {
	_, err := worker.NewCacheEvictionWorker(&mockEvictor{}, 0, time.Hour)
	gt.Error(t, err)
	_, err = worker.NewCacheEvictionWorker(&mockEvictor{}, time.Hour, 0)
	gt.Error(t, err)
}
