package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type ledgerRepository struct {
	db *sql.DB
}

func (r *ledgerRepository) Get(ctx context.Context, key string) (*model.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document_key, output_path, processed_at, status FROM processed_documents WHERE document_key = ?`,
		key,
	)
	entry, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get ledger entry", goerr.V("key", key))
	}
	return entry, nil
}

func (r *ledgerRepository) Put(ctx context.Context, entry *model.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_documents (document_key, output_path, processed_at, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(document_key) DO UPDATE SET
		   output_path = excluded.output_path,
		   processed_at = excluded.processed_at,
		   status = excluded.status`,
		entry.DocumentKey, entry.OutputPath, entry.ProcessedAt.UnixNano(), string(entry.Status),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put ledger entry", goerr.V("key", entry.DocumentKey))
	}
	return nil
}

func (r *ledgerRepository) List(ctx context.Context) ([]*model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document_key, output_path, processed_at, status FROM processed_documents ORDER BY document_key`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ledger entries")
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan ledger entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate ledger entries")
	}
	return entries, nil
}

func (r *ledgerRepository) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_documents`)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear ledger")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read affected rows")
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntry(s scanner) (*model.LedgerEntry, error) {
	var (
		entry       model.LedgerEntry
		processedAt int64
		status      string
	)
	if err := s.Scan(&entry.DocumentKey, &entry.OutputPath, &processedAt, &status); err != nil {
		return nil, err
	}
	entry.ProcessedAt = time.Unix(0, processedAt).UTC()
	entry.Status = types.LedgerStatus(status)
	return &entry, nil
}
