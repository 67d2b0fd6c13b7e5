// Package gcs keeps the sync blob in a Google Cloud Storage bucket. Object
// generations serve as revisions, so concurrent writers are fenced with
// generation preconditions.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Store wraps a bucket handle.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewStore creates a storage client using Application Default Credentials
// unless opts say otherwise.
func NewStore(ctx context.Context, bucketName string, opts ...option.ClientOption) (*Store, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucketName)}, nil
}

var _ portsrepo.RemoteBlobStore = (*Store)(nil)

func (s *Store) Find(ctx context.Context, name string) (*domain.RemoteHandle, error) {
	attrs, err := s.bucket.Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat GCS object %q: %w", name, err)
	}
	return handleFromAttrs(attrs), nil
}

func (s *Store) Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	obj := s.bucket.Object(name)
	if existing == nil {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else if gen, err := strconv.ParseInt(existing.Revision, 10, 64); err == nil {
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write GCS object %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil, fmt.Errorf("GCS object %q: %w", name, apperrors.ErrStaleRemote)
		}
		return nil, fmt.Errorf("finalize upload of %q: %w", name, err)
	}
	return handleFromAttrs(w.Attrs()), nil
}

func (s *Store) Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error) {
	obj := s.bucket.Object(handle.Name)
	if gen, err := strconv.ParseInt(handle.Revision, 10, 64); err == nil {
		obj = obj.Generation(gen)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("GCS object %q: %w", handle.Name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

func handleFromAttrs(attrs *storage.ObjectAttrs) *domain.RemoteHandle {
	return &domain.RemoteHandle{
		ID:         attrs.Bucket + "/" + attrs.Name,
		Name:       attrs.Name,
		Revision:   strconv.FormatInt(attrs.Generation, 10),
		ModifiedAt: attrs.Updated,
	}
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
