package memory

import (
	"context"
	"sync"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
)

type cacheRepository struct {
	mu      sync.RWMutex
	entries map[string]*model.CacheEntry
}

func newCacheRepository() *cacheRepository {
	return &cacheRepository{
		entries: make(map[string]*model.CacheEntry),
	}
}

func (r *cacheRepository) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	entryCopy := *entry
	return &entryCopy, nil
}

func (r *cacheRepository) Put(ctx context.Context, entry *model.CacheEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.Fingerprint]; ok {
		return false, nil
	}
	entryCopy := *entry
	r.entries[entry.Fingerprint] = &entryCopy
	return true, nil
}

func (r *cacheRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int
	for fp, entry := range r.entries {
		if entry.StoredAt.Before(t) {
			delete(r.entries, fp)
			deleted++
		}
	}
	return deleted, nil
}

func (r *cacheRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}
