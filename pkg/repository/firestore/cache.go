package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const deleteBatchSize = 500

type cacheRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func (r *cacheRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.collectionPrefix, CacheCollection))
}

func (r *cacheRepository) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	doc, err := r.collection().Doc(fingerprint).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("fingerprint", fingerprint))
	}

	var entry model.CacheEntry
	if err := doc.DataTo(&entry); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cache entry", goerr.V("fingerprint", fingerprint))
	}
	return &entry, nil
}

// Put relies on Create failing with AlreadyExists so concurrent writers keep the first value
func (r *cacheRepository) Put(ctx context.Context, entry *model.CacheEntry) (bool, error) {
	_, err := r.collection().Doc(entry.Fingerprint).Create(ctx, entry)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to put cache entry", goerr.V("fingerprint", entry.Fingerprint))
	}
	return true, nil
}

func (r *cacheRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	totalDeleted := 0

	for {
		iter := r.collection().
			Where("stored_at", "<", t).
			Limit(deleteBatchSize).
			Documents(ctx)
		bulkWriter := r.client.BulkWriter(ctx)
		count := 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				bulkWriter.End()
				return totalDeleted, goerr.Wrap(err, "failed to iterate cache entries for deletion")
			}

			if _, err := bulkWriter.Delete(doc.Ref); err != nil {
				iter.Stop()
				bulkWriter.End()
				return totalDeleted, goerr.Wrap(err, "failed to delete cache entry")
			}
			count++
		}
		iter.Stop()
		bulkWriter.End()

		totalDeleted += count
		if count < deleteBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

func (r *cacheRepository) Count(ctx context.Context) (int, error) {
	result, err := r.collection().NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count cache entries")
	}

	v, ok := result["count"]
	if !ok {
		return 0, goerr.New("count aggregation missing from result")
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case interface{ GetIntegerValue() int64 }:
		return int(n.GetIntegerValue()), nil
	default:
		return 0, goerr.New("unexpected count aggregation type", goerr.V("value", v))
	}
}
