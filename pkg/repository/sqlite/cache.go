package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type cacheRepository struct {
	db *sql.DB
}

func (r *cacheRepository) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var (
		entry    model.CacheEntry
		storedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT fingerprint, model, response, stored_at FROM response_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&entry.Fingerprint, &entry.Model, &entry.Response, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("fingerprint", fingerprint))
	}

	entry.StoredAt = time.Unix(0, storedAt).UTC()
	return &entry, nil
}

func (r *cacheRepository) Put(ctx context.Context, entry *model.CacheEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO response_cache (fingerprint, model, response, stored_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		entry.Fingerprint, entry.Model, entry.Response, entry.StoredAt.UnixNano(),
	)
	if err != nil {
		return false, goerr.Wrap(err, "failed to put cache entry", goerr.V("fingerprint", entry.Fingerprint))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to read affected rows")
	}
	return n > 0, nil
}

func (r *cacheRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM response_cache WHERE stored_at < ?`, t.UnixNano())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete cache entries", goerr.V("before", t))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read affected rows")
	}
	return int(n), nil
}

func (r *cacheRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_cache`).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count cache entries")
	}
	return n, nil
}
