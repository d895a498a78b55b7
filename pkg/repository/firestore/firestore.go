package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// Collection names, also used by the migrate command for index definitions
const (
	CacheCollection  = "response_cache"
	LedgerCollection = "processed_documents"
)

type Firestore struct {
	client *firestore.Client
	cache  *cacheRepository
	ledger *ledgerRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.cache.collectionPrefix = prefix
		f.ledger.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		cache:  &cacheRepository{client: client},
		ledger: &ledgerRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Cache() interfaces.CacheRepository {
	return f.cache
}

func (f *Firestore) Ledger() interfaces.LedgerRepository {
	return f.ledger
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// CollectionName returns name with the optional collection prefix applied
func CollectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
