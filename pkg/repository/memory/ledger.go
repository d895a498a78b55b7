package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/db4dd/db4dd/pkg/domain/model"
)

type ledgerRepository struct {
	mu      sync.RWMutex
	entries map[string]*model.LedgerEntry
}

func newLedgerRepository() *ledgerRepository {
	return &ledgerRepository{
		entries: make(map[string]*model.LedgerEntry),
	}
}

func (r *ledgerRepository) Get(ctx context.Context, key string) (*model.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	entryCopy := *entry
	return &entryCopy, nil
}

func (r *ledgerRepository) Put(ctx context.Context, entry *model.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryCopy := *entry
	r.entries[entry.DocumentKey] = &entryCopy
	return nil
}

func (r *ledgerRepository) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.LedgerEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DocumentKey < entries[j].DocumentKey
	})
	return entries, nil
}

func (r *ledgerRepository) DeleteAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[string]*model.LedgerEntry)
	return n, nil
}
