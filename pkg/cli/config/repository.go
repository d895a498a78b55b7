package config

import (
	"context"
	"log/slog"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/repository/firestore"
	"github.com/db4dd/db4dd/pkg/repository/memory"
	"github.com/db4dd/db4dd/pkg/repository/redis"
	"github.com/db4dd/db4dd/pkg/repository/sqlite"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// DefaultSQLitePath is where cache and ledger live when no store is configured
const DefaultSQLitePath = ".db4dd/state.db"

// Repository holds CLI flags for the cache and ledger store
type Repository struct {
	backend          string
	sqlitePath       string
	redisURL         string
	redisPrefix      string
	projectID        string
	databaseID       string
	collectionPrefix string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Category:    "Store",
			Usage:       "Store backend for cache and ledger (sqlite, redis, firestore, memory)",
			Value:       string(types.StoreSQLite),
			Sources:     cli.EnvVars("DB4DD_STORE"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Category:    "Store",
			Usage:       "SQLite database file",
			Value:       DefaultSQLitePath,
			Sources:     cli.EnvVars("DB4DD_SQLITE_PATH"),
			Destination: &r.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Store",
			Usage:       "Redis URL, e.g. redis://localhost:6379/0 (required for the redis store)",
			Sources:     cli.EnvVars("DB4DD_REDIS_URL"),
			Destination: &r.redisURL,
		},
		&cli.StringFlag{
			Name:        "redis-prefix",
			Category:    "Store",
			Usage:       "Key prefix in Redis",
			Value:       redis.DefaultKeyPrefix,
			Sources:     cli.EnvVars("DB4DD_REDIS_PREFIX"),
			Destination: &r.redisPrefix,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Category:    "Store",
			Usage:       "Firestore Project ID (required for the firestore store)",
			Sources:     cli.EnvVars("DB4DD_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Category:    "Store",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("DB4DD_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Category:    "Store",
			Usage:       "Prefix added to Firestore collection names",
			Sources:     cli.EnvVars("DB4DD_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
	}
}

// LogAttrs returns log attributes for the configuration. The Redis URL may carry a password and is not logged.
func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", r.backend),
		slog.String("sqlite_path", r.sqlitePath),
		slog.Bool("redis_url_set", r.redisURL != ""),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() types.StoreBackend {
	return types.StoreBackend(r.backend)
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// Configure initializes the store based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.Backend() {
	case types.StoreSQLite:
		repo, err := sqlite.New(ctx, r.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite repository")
		}
		logging.Default().Info("Using SQLite repository", "path", r.sqlitePath)
		return repo, nil

	case types.StoreRedis:
		if r.redisURL == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "redis-url is required when using redis store")
		}
		repo, err := redis.New(ctx, r.redisURL, redis.WithKeyPrefix(r.redisPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize redis repository")
		}
		logging.Default().Info("Using Redis repository", "prefix", r.redisPrefix)
		return repo, nil

	case types.StoreFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore store")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, firestore.WithCollectionPrefix(r.collectionPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case types.StoreMemory:
		logging.Default().Info("Using in-memory repository, cache and ledger are lost on exit")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid store backend", goerr.V("backend", r.backend))
	}
}
