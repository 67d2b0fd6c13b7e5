package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
)

// SyncStatus is the state of the sync engine.
type SyncStatus string

const (
	SyncIdle       SyncStatus = "idle"
	SyncChecking   SyncStatus = "checking"
	SyncUpToDate   SyncStatus = "up_to_date"
	SyncConflicted SyncStatus = "conflicted"
	SyncSyncing    SyncStatus = "syncing"
)

// SyncStrategy decides how divergent local and remote ledgers are reconciled.
type SyncStrategy string

const (
	StrategyOverwriteLocal SyncStrategy = "overwrite_local"
	StrategyOverwriteCloud SyncStrategy = "overwrite_cloud"
	StrategyMerge          SyncStrategy = "merge"
)

// IsValid reports whether s is a known strategy.
func (s SyncStrategy) IsValid() bool {
	return s == StrategyOverwriteLocal || s == StrategyOverwriteCloud || s == StrategyMerge
}

// SyncOptions parameterize one sync cycle.
type SyncOptions struct {
	Strategy SyncStrategy `json:"strategy"`
	// Force makes a merge resolve remaining collisions in bulk, remote winning.
	Force bool `json:"force"`
}

// RemoteHandle locates a blob in the remote store.
type RemoteHandle struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Revision   string    `json:"revision,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// SyncState is the per-device sync bookkeeping persisted in the ledger store.
type SyncState struct {
	StateID       string                    `json:"id"`
	DeviceID      string                    `json:"deviceID"`
	LastSyncAt    *time.Time                `json:"lastSyncTimestamp,omitempty"`
	LastFailureAt *time.Time                `json:"lastFailureAt,omitempty"`
	LastError     string                    `json:"lastError,omitempty"`
	RemoteHandle  *RemoteHandle             `json:"remoteHandle,omitempty"`
	Resolutions   map[string]ResolutionSide `json:"resolutions,omitempty"`
}

// LocalSyncStateID is the id of the single SyncState record.
const LocalSyncStateID = "local"

func (s SyncState) RecordKind() EntityKind { return KindSyncState }
func (s SyncState) RecordID() string       { return s.StateID }
func (s SyncState) IndexKeys() IndexKeys   { return IndexKeys{} }

// MergeStats counts what a merge changed locally.
type MergeStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// SyncResult describes the outcome of a sync cycle.
type SyncResult struct {
	Status     SyncStatus   `json:"status"`
	Strategy   SyncStrategy `json:"strategy"`
	Uploaded   bool         `json:"uploaded"`
	Downloaded bool         `json:"downloaded"`
	Conflicts  []Conflict   `json:"conflicts,omitempty"`
	Merge      MergeStats   `json:"merge"`
	LastSyncAt *time.Time   `json:"lastSyncTimestamp,omitempty"`
}

// Deferred returns apperrors.ErrConflictUnresolved, wrapped with the conflict
// count, when the cycle stopped to wait for manual resolution. A deferred
// cycle is not a failure and must not be retried.
func (r SyncResult) Deferred() error {
	if r.Status != SyncConflicted {
		return nil
	}
	return fmt.Errorf("%d pending: %w", len(r.Conflicts), apperrors.ErrConflictUnresolved)
}
