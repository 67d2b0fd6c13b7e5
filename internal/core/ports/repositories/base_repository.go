package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
)

// ErrRollbackFailed is reported by WithTransaction when fn failed and the
// partial writes could not be undone. Callers must treat the affected
// records as suspect.
var ErrRollbackFailed = errors.New("transaction rollback failed")

// ScanQuery selects records of one kind by their secondary keys.
// Results are ordered by Date, then ID.
type ScanQuery struct {
	Kind       domain.EntityKind
	AccountID  string
	CategoryID string
	Type       string
	From       *time.Time // inclusive
	To         *time.Time // exclusive
}

// RecordReader reads raw JSON records.
type RecordReader interface {
	// GetRecord returns apperrors.ErrNotFound when the record does not exist.
	GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error)
	ScanRecords(ctx context.Context, q ScanQuery) ([][]byte, error)
}

// RecordWriter writes raw JSON records.
type RecordWriter interface {
	// PutRecord inserts or replaces the record.
	PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error
	// DeleteRecord returns apperrors.ErrNotFound when the record does not exist.
	DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error
}

// RecordStore is the key-value surface shared by stores and their transactions.
type RecordStore interface {
	RecordReader
	RecordWriter
}

// TransactionManager runs fn atomically. If fn returns an error nothing it
// wrote is visible afterwards.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx RecordStore) error) error
}

// LedgerStore is a durable record store with atomic multi-record writes.
type LedgerStore interface {
	RecordStore
	TransactionManager
	Close() error
}
