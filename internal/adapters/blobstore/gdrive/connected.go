package gdrive

import (
	"context"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"golang.org/x/oauth2"
)

// TokenSourceProvider yields the OAuth token source once the user has connected Drive.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// ConnectedStore builds the Drive client on first use, so the server can start
// before the owner has granted access. Until then every call fails with the
// provider's error, normally apperrors.ErrUnauthorized.
type ConnectedStore struct {
	provider TokenSourceProvider

	mu    sync.Mutex
	store *Store
}

// NewConnectedStore wraps provider.
func NewConnectedStore(provider TokenSourceProvider) *ConnectedStore {
	return &ConnectedStore{provider: provider}
}

var _ portsrepo.RemoteBlobStore = (*ConnectedStore)(nil)

func (c *ConnectedStore) get(ctx context.Context) (*Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	ts, err := c.provider.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(context.WithoutCancel(ctx), ts)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *ConnectedStore) Find(ctx context.Context, name string) (*domain.RemoteHandle, error) {
	store, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.Find(ctx, name)
}

func (c *ConnectedStore) Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	store, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.Upload(ctx, name, data, existing)
}

func (c *ConnectedStore) Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error) {
	store, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.Download(ctx, handle)
}

// Reset drops the cached client so the next call picks up a newly stored token.
func (c *ConnectedStore) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = nil
}
