package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"cloud.google.com/go/firestore"
	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ledgerRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func (r *ledgerRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.collectionPrefix, LedgerCollection))
}

// docID hashes the document key; keys may contain characters Firestore rejects in IDs
func docID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r *ledgerRepository) Get(ctx context.Context, key string) (*model.LedgerEntry, error) {
	doc, err := r.collection().Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get ledger entry", goerr.V("key", key))
	}

	var entry model.LedgerEntry
	if err := doc.DataTo(&entry); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal ledger entry", goerr.V("key", key))
	}
	return &entry, nil
}

func (r *ledgerRepository) Put(ctx context.Context, entry *model.LedgerEntry) error {
	ref := r.collection().Doc(docID(entry.DocumentKey))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return tx.Set(ref, entry)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put ledger entry", goerr.V("key", entry.DocumentKey))
	}
	return nil
}

func (r *ledgerRepository) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	// Requires the (status, document_key) composite index created by the migrate command
	iter := r.collection().
		Where("status", "==", string(types.LedgerStatusCompleted)).
		OrderBy("document_key", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var entries []*model.LedgerEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate ledger entries")
		}

		var entry model.LedgerEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal ledger entry", goerr.V("docID", doc.Ref.ID))
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (r *ledgerRepository) DeleteAll(ctx context.Context) (int, error) {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to iterate ledger entries for deletion")
		}
		refs = append(refs, doc.Ref)
	}

	if len(refs) == 0 {
		return 0, nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range refs {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return 0, goerr.Wrap(err, "failed to add Delete operation to bulk writer")
		}
	}
	bulkWriter.Flush()

	return len(refs), nil
}
