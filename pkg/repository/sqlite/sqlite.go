package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

// SQLite stores cache and ledger in a single database file shared by concurrent processes
type SQLite struct {
	db     *sql.DB
	cache  *cacheRepository
	ledger *ledgerRepository
}

var _ interfaces.Repository = &SQLite{}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS response_cache (
		fingerprint TEXT PRIMARY KEY,
		model       TEXT NOT NULL,
		response    TEXT NOT NULL,
		stored_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_response_cache_stored_at ON response_cache (stored_at)`,
	`CREATE TABLE IF NOT EXISTS processed_documents (
		document_key TEXT PRIMARY KEY,
		output_path  TEXT NOT NULL,
		processed_at INTEGER NOT NULL,
		status       TEXT NOT NULL
	)`,
}

// New opens (and creates if needed) the database at path
func New(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to apply pragma", goerr.V("pragma", p))
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to migrate sqlite schema")
		}
	}

	return &SQLite{
		db:     db,
		cache:  &cacheRepository{db: db},
		ledger: &ledgerRepository{db: db},
	}, nil
}

func (s *SQLite) Cache() interfaces.CacheRepository {
	return s.cache
}

func (s *SQLite) Ledger() interfaces.LedgerRepository {
	return s.ledger
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
