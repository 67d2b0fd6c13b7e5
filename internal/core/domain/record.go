package domain

import "time"

// EntityKind names a record collection in the ledger store.
type EntityKind string

const (
	KindTransaction EntityKind = "transactions"
	KindAccount     EntityKind = "accounts"
	KindCategory    EntityKind = "categories"
	KindBudget      EntityKind = "budgets"
	KindConflict    EntityKind = "conflicts"
	KindSyncState   EntityKind = "sync_state"
)

// IndexKeys are the secondary index values a store maintains for a record.
// Zero values are not indexed.
type IndexKeys struct {
	AccountID  string
	CategoryID string
	Type       string
	Date       time.Time
}

// Record is anything that can be persisted in the ledger store.
type Record interface {
	RecordKind() EntityKind
	RecordID() string
	IndexKeys() IndexKeys
}
