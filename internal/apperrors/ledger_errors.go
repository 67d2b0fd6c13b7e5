package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrReferential indicates a missing or type-incompatible category/account reference.
	ErrReferential = errors.New("referential integrity error")
	// ErrConsistency indicates the ledger can no longer prove its balance invariant.
	ErrConsistency = errors.New("ledger consistency error")
	// ErrAuthentication indicates an envelope failed its MAC check.
	ErrAuthentication = errors.New("envelope authentication failed")
	// ErrSync indicates a remote store failure.
	ErrSync = errors.New("sync error")
	// ErrConflictUnresolved marks a merge that is waiting for manual resolution.
	ErrConflictUnresolved = errors.New("conflicts require manual resolution")
	// ErrStaleRemote means the remote blob was replaced after it was last read.
	ErrStaleRemote = errors.New("remote blob changed since it was read")
	// ErrSyncInProgress rejects a sync request while another cycle is running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// ValidationError reports a bad input value for a single field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferentialError reports that Field points at a record that is missing or of the wrong type.
type ReferentialError struct {
	Field string
	Kind  string
	ID    string
	Cause string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("referential integrity error: %s references %s %q: %s", e.Field, e.Kind, e.ID, e.Cause)
}

func (e *ReferentialError) Unwrap() error { return ErrReferential }

// ConsistencyError is fatal for the affected account: writes stay blocked until it is reconciled.
type ConsistencyError struct {
	AccountID string
	Op        string
	Err       error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger consistency error on account %s during %s: %v", e.AccountID, e.Op, e.Err)
	}
	return fmt.Sprintf("ledger consistency error on account %s during %s", e.AccountID, e.Op)
}

func (e *ConsistencyError) Unwrap() []error { return []error{ErrConsistency, e.Err} }

// AuthenticationError means wrong key or tampering. Retrying with the same ciphertext is pointless.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "envelope authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

// SyncError wraps a remote store failure.
type SyncError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrSync, e.Err} }

// IsRetryable reports whether err is a SyncError that may succeed on retry.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr) && syncErr.Retryable
}
