package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// evictBatchSize bounds the number of keys removed per pipeline
const evictBatchSize = 500

type cacheRepository struct {
	client *redis.Client
	prefix string
}

func (r *cacheRepository) entryKey(fingerprint string) string {
	return r.prefix + ":cache:" + fingerprint
}

// indexKey is a sorted set of fingerprints scored by stored time in milliseconds
func (r *cacheRepository) indexKey() string {
	return r.prefix + ":cache:index"
}

func (r *cacheRepository) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	raw, err := r.client.Get(ctx, r.entryKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("fingerprint", fingerprint))
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, goerr.Wrap(err, "failed to decode cache entry", goerr.V("fingerprint", fingerprint))
	}
	return &entry, nil
}

func (r *cacheRepository) Put(ctx context.Context, entry *model.CacheEntry) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, goerr.Wrap(err, "failed to encode cache entry")
	}

	// Entry and index go in one MULTI so eviction always sees what was stored.
	// ZADD NX keeps the first stored time and re-indexes an entry that lost its member.
	var setCmd *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, r.entryKey(entry.Fingerprint), raw, 0)
		pipe.ZAddNX(ctx, r.indexKey(), redis.Z{
			Score:  float64(entry.StoredAt.UnixMilli()),
			Member: entry.Fingerprint,
		})
		return nil
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to put cache entry", goerr.V("fingerprint", entry.Fingerprint))
	}
	return setCmd.Val(), nil
}

func (r *cacheRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	fingerprints, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(t.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to scan cache index", goerr.V("before", t))
	}

	var deleted int
	for start := 0; start < len(fingerprints); start += evictBatchSize {
		end := min(start+evictBatchSize, len(fingerprints))
		batch := fingerprints[start:end]

		keys := make([]string, len(batch))
		members := make([]any, len(batch))
		for i, fp := range batch {
			keys[i] = r.entryKey(fp)
			members[i] = fp
		}

		var delCmd *redis.IntCmd
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			delCmd = pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, r.indexKey(), members...)
			return nil
		})
		if err != nil {
			return deleted, goerr.Wrap(err, "failed to delete cache entries", goerr.V("count", len(batch)))
		}
		deleted += int(delCmd.Val())
	}
	return deleted, nil
}

func (r *cacheRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count cache entries")
	}
	return int(n), nil
}
