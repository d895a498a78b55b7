package interfaces

import (
	"context"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
)

// CacheRepository persists LLM responses keyed by request fingerprint.
// Backends must accept concurrent writers from several processes.
type CacheRepository interface {
	// Get returns the entry for fingerprint, or nil without error when it does not exist
	Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error)

	// Put stores entry only if no entry exists for its fingerprint.
	// It reports whether the entry was created; an existing entry is never overwritten.
	Put(ctx context.Context, entry *model.CacheEntry) (bool, error)

	// DeleteBefore removes entries stored before t and returns how many were removed
	DeleteBefore(ctx context.Context, t time.Time) (int, error)

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)
}
