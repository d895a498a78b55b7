package worker

import (
	"context"
	"time"

	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Evictor removes cache entries older than maxAge and returns how many were removed
type Evictor interface {
	EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// CacheEvictionWorker periodically drops stale response cache entries while watch mode runs.
//
// Concurrent workers in several processes are safe: eviction is an idempotent range delete.
type CacheEvictionWorker struct {
	cache    Evictor
	maxAge   time.Duration
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCacheEvictionWorker creates a worker evicting entries older than maxAge every interval
func NewCacheEvictionWorker(cache Evictor, maxAge, interval time.Duration) (*CacheEvictionWorker, error) {
	if maxAge <= 0 {
		return nil, goerr.New("cache max age must be positive", goerr.V("max_age", maxAge))
	}
	if interval <= 0 {
		return nil, goerr.New("eviction interval must be positive", goerr.V("interval", interval))
	}
	return &CacheEvictionWorker{
		cache:    cache,
		maxAge:   maxAge,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the eviction loop in the background. The first eviction runs immediately.
func (w *CacheEvictionWorker) Start(ctx context.Context) {
	logging.From(ctx).Info("cache eviction worker starting",
		"interval", w.interval.String(),
		"max_age", w.maxAge.String())

	go w.run(ctx)
}

// Stop signals the worker to stop and waits for completion
func (w *CacheEvictionWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("cache eviction worker stopped")
}

func (w *CacheEvictionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.evict(ctx); err != nil {
		logging.From(ctx).Error("cache eviction failed (will retry next interval)", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.evict(ctx); err != nil {
				logging.From(ctx).Error("cache eviction failed (will retry next interval)", "error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *CacheEvictionWorker) evict(ctx context.Context) error {
	start := time.Now()
	n, err := w.cache.EvictOlderThan(ctx, w.maxAge)
	if err != nil {
		return goerr.Wrap(err, "failed to evict cache entries", goerr.V("max_age", w.maxAge))
	}

	logging.From(ctx).Info("cache eviction completed",
		"removed", n,
		"duration", time.Since(start).String())
	return nil
}
