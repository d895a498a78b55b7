package redis

import (
	"context"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is prepended to every key
const DefaultKeyPrefix = "db4dd"

// Redis stores cache and ledger in a shared Redis server
type Redis struct {
	client *redis.Client
	cache  *cacheRepository
	ledger *ledgerRepository
}

var _ interfaces.Repository = &Redis{}

type Option func(*Redis)

// WithKeyPrefix namespaces every key, e.g. to isolate tests
func WithKeyPrefix(prefix string) Option {
	return func(r *Redis) {
		r.cache.prefix = prefix
		r.ledger.prefix = prefix
	}
}

// New connects to the server described by url (redis://[:password@]host:port/db)
func New(ctx context.Context, url string, opts ...Option) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse redis url")
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", options.Addr))
	}

	r := &Redis{
		client: client,
		cache:  &cacheRepository{client: client, prefix: DefaultKeyPrefix},
		ledger: &ledgerRepository{client: client, prefix: DefaultKeyPrefix},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) Cache() interfaces.CacheRepository {
	return r.cache
}

func (r *Redis) Ledger() interfaces.LedgerRepository {
	return r.ledger
}

func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
