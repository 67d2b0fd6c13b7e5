// Package local keeps the sync blob in a directory on disk. It suits a
// folder mirrored by a desktop sync client, and tests.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

// Store writes blobs as files under Dir. The revision of a blob is the hash of its content.
type Store struct {
	Dir string
	mu  sync.Mutex
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create sync directory %q: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

var _ portsrepo.RemoteBlobStore = (*Store)(nil)

func (s *Store) Find(ctx context.Context, name string) (*domain.RemoteHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stat(name)
}

func (s *Store) Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.stat(name)
	if err != nil {
		return nil, err
	}
	switch {
	case existing == nil && current != nil:
		return nil, fmt.Errorf("blob %q already exists: %w", name, apperrors.ErrStaleRemote)
	case existing != nil && current != nil && existing.Revision != "" && existing.Revision != current.Revision:
		return nil, fmt.Errorf("blob %q: %w", name, apperrors.ErrStaleRemote)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return nil, fmt.Errorf("replace blob %q: %w", name, err)
	}
	return s.stat(name)
}

func (s *Store) Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(handle.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", handle.Name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %q: %w", handle.Name, err)
	}
	return data, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

func (s *Store) stat(name string) (*domain.RemoteHandle, error) {
	p := s.path(name)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat blob %q: %w", name, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", name, err)
	}
	sum := sha256.Sum256(data)
	return &domain.RemoteHandle{
		ID:         p,
		Name:       filepath.Base(name),
		Revision:   hex.EncodeToString(sum[:]),
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}
