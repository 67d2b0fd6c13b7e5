// Package sqlite is a single-file LedgerStore for local installs, using the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	migrate "github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// dateLayout is fixed width so that text ordering equals time ordering.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store keeps every record in one SQLite table.
type Store struct {
	db      *sql.DB
	records recordTable
}

var _ portsrepo.LedgerStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, records: recordTable{q: db}}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite driver instance for migrations: %w", err)
	}
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(ctx, recordTable{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(portsrepo.ErrRollbackFailed, rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type recordTable struct {
	q querier
}

func (r recordTable) GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error) {
	var data []byte
	err := r.q.QueryRowContext(ctx, `SELECT data FROM ledger_records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s %s: %w", kind, id, err)
	}
	return data, nil
}

func (r recordTable) ScanRecords(ctx context.Context, q portsrepo.ScanQuery) ([][]byte, error) {
	where := []string{"kind = ?"}
	args := []any{string(q.Kind)}
	add := func(clause string, v any) {
		where = append(where, clause)
		args = append(args, v)
	}
	if q.AccountID != "" {
		add("account_id = ?", q.AccountID)
	}
	if q.CategoryID != "" {
		add("category_id = ?", q.CategoryID)
	}
	if q.Type != "" {
		add("record_type = ?", q.Type)
	}
	if q.From != nil {
		add("record_date >= ?", formatDate(*q.From))
	}
	if q.To != nil {
		add("record_date < ?", formatDate(*q.To))
	}

	rows, err := r.q.QueryContext(ctx, `SELECT data FROM ledger_records WHERE `+strings.Join(where, " AND ")+` ORDER BY record_date, id`, args...)
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
	return out, rows.Err()
}

func (r recordTable) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ledger_records (kind, id, account_id, category_id, record_type, record_date, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			account_id = excluded.account_id,
			category_id = excluded.category_id,
			record_type = excluded.record_type,
			record_date = excluded.record_date,
			data = excluded.data,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		string(kind), id, keys.AccountID, keys.CategoryID, keys.Type, formatDate(keys.Date), data)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, id, err)
	}
	return nil
}

func (r recordTable) DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM ledger_records WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
