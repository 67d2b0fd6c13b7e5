package repositories

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
)

// RemoteBlobStore stores the encrypted ledger envelope off-device.
type RemoteBlobStore interface {
	// Find returns nil and no error when no blob named name exists.
	Find(ctx context.Context, name string) (*domain.RemoteHandle, error)
	// Upload creates the blob when existing is nil and replaces it otherwise.
	// Stores that support revisions reject the write if existing.Revision is stale.
	Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error)
	Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error)
}
