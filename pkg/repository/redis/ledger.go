package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

type ledgerRepository struct {
	client *redis.Client
	prefix string
}

// hashKey holds one field per document key
func (r *ledgerRepository) hashKey() string {
	return r.prefix + ":ledger"
}

func (r *ledgerRepository) Get(ctx context.Context, key string) (*model.LedgerEntry, error) {
	raw, err := r.client.HGet(ctx, r.hashKey(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get ledger entry", goerr.V("key", key))
	}

	var entry model.LedgerEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, goerr.Wrap(err, "failed to decode ledger entry", goerr.V("key", key))
	}
	return &entry, nil
}

func (r *ledgerRepository) Put(ctx context.Context, entry *model.LedgerEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to encode ledger entry")
	}
	if err := r.client.HSet(ctx, r.hashKey(), entry.DocumentKey, raw).Err(); err != nil {
		return goerr.Wrap(err, "failed to put ledger entry", goerr.V("key", entry.DocumentKey))
	}
	return nil
}

func (r *ledgerRepository) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	all, err := r.client.HGetAll(ctx, r.hashKey()).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ledger entries")
	}

	entries := make([]*model.LedgerEntry, 0, len(all))
	for key, raw := range all {
		var entry model.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode ledger entry", goerr.V("key", key))
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DocumentKey < entries[j].DocumentKey
	})
	return entries, nil
}

func (r *ledgerRepository) DeleteAll(ctx context.Context) (int, error) {
	var lenCmd *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lenCmd = pipe.HLen(ctx, r.hashKey())
		pipe.Del(ctx, r.hashKey())
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear ledger")
	}
	return int(lenCmd.Val()), nil
}
