// Package pgsql is a LedgerStore backed by PostgreSQL through pgx.
package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps every record in the ledger_records table.
type Store struct {
	BaseRepository
	records recordTable
}

// NewStore wraps an open pool. The caller owns the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{BaseRepository: BaseRepository{Pool: pool}, records: recordTable{q: pool}}
}

var _ portsrepo.LedgerStore = (*Store)(nil)

func (s *Store) GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error) {
	return s.records.GetRecord(ctx, kind, id)
}

func (s *Store) ScanRecords(ctx context.Context, q portsrepo.ScanQuery) ([][]byte, error) {
	return s.records.ScanRecords(ctx, q)
}

func (s *Store) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	return s.records.PutRecord(ctx, kind, id, keys, data)
}

func (s *Store) DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error {
	return s.records.DeleteRecord(ctx, kind, id)
}

// WithTransaction runs fn inside a database transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx portsrepo.RecordStore) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, recordTable{q: tx}); err != nil {
		if rbErr := s.Rollback(context.WithoutCancel(ctx), tx); rbErr != nil {
			return errors.Join(portsrepo.ErrRollbackFailed, rbErr, err)
		}
		return err
	}
	return s.Commit(ctx, tx)
}

// Close is a no-op; the pool is closed by its owner.
func (s *Store) Close() error { return nil }

type recordTable struct {
	q querier
}

func (r recordTable) GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error) {
	var data []byte
	err := r.q.QueryRow(ctx, `SELECT data FROM ledger_records WHERE kind = $1 AND id = $2`, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s %s: %w", kind, id, err)
	}
	return data, nil
}

func (r recordTable) ScanRecords(ctx context.Context, q portsrepo.ScanQuery) ([][]byte, error) {
	where := []string{"kind = $1"}
	args := []any{string(q.Kind)}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.AccountID != "" {
		add("account_id = $%d", q.AccountID)
	}
	if q.CategoryID != "" {
		add("category_id = $%d", q.CategoryID)
	}
	if q.Type != "" {
		add("record_type = $%d", q.Type)
	}
	if q.From != nil {
		add("record_date >= $%d", *q.From)
	}
	if q.To != nil {
		add("record_date < $%d", *q.To)
	}

	query := `SELECT data FROM ledger_records WHERE ` + strings.Join(where, " AND ") + ` ORDER BY record_date, id`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", q.Kind, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", q.Kind, err)
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", q.Kind, err)
	}
	return out, nil
}

func (r recordTable) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	query := `
		INSERT INTO ledger_records (kind, id, account_id, category_id, record_type, record_date, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (kind, id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			category_id = EXCLUDED.category_id,
			record_type = EXCLUDED.record_type,
			record_date = EXCLUDED.record_date,
			data = EXCLUDED.data,
			updated_at = now();
	`
	_, err := r.q.Exec(ctx, query, string(kind), id, keys.AccountID, keys.CategoryID, keys.Type, keys.Date.UTC(), data)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, id, err)
	}
	return nil
}

func (r recordTable) DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM ledger_records WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
