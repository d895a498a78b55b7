package interfaces

import (
	"context"

	"github.com/db4dd/db4dd/pkg/domain/model"
)

// LedgerRepository persists which documents completed the pipeline
type LedgerRepository interface {
	// Get returns the entry for key, or nil without error when the document was never processed
	Get(ctx context.Context, key string) (*model.LedgerEntry, error)

	// Put upserts the entry for entry.DocumentKey atomically
	Put(ctx context.Context, entry *model.LedgerEntry) error

	// List returns all entries ordered by document key
	List(ctx context.Context) ([]*model.LedgerEntry, error)

	// DeleteAll removes every entry and returns how many were removed
	DeleteAll(ctx context.Context) (int, error)
}
