package services

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"golang.org/x/oauth2"
)

// EncryptionSvc turns ledger snapshots into authenticated envelopes and back.
type EncryptionSvc interface {
	EncryptSnapshot(ctx context.Context, snapshot domain.Snapshot) (*domain.EncryptedEnvelope, error)
	// DecryptSnapshot fails with an apperrors.AuthenticationError before decrypting
	// anything when the envelope was not produced with the same secret.
	DecryptSnapshot(ctx context.Context, envelope domain.EncryptedEnvelope) (*domain.Snapshot, error)
}

// SyncSvcFacade reconciles the local ledger with the remote backup.
type SyncSvcFacade interface {
	// Sync runs one cycle. Unresolved conflicts are reported through the result
	// status, not as an error. A concurrent call fails with apperrors.ErrSyncInProgress.
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error)
	Status(ctx context.Context) (*dto.SyncStatusResponse, error)
	ListConflicts(ctx context.Context) ([]domain.Conflict, error)
	// ResolveConflict applies one side of a conflict and removes exactly that conflict.
	ResolveConflict(ctx context.Context, conflictID string, side domain.ResolutionSide) (*dto.ResolveConflictResponse, error)
}

// AuthSvc authenticates the ledger owner.
type AuthSvc interface {
	Login(ctx context.Context, password string) (*dto.AuthResponse, error)
}

// GoogleDriveConnectorSvc runs the OAuth consent flow for the Drive blob store.
type GoogleDriveConnectorSvc interface {
	AuthURL(ctx context.Context) (*dto.GoogleAuthURLResponse, error)
	ExchangeCode(ctx context.Context, code, state string) (*dto.GoogleConnectionResponse, error)
	// TokenSource returns apperrors.ErrUnauthorized until a token has been obtained.
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}
