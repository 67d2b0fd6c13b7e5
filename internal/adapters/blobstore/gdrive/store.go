// Package gdrive keeps the sync blob in the application data folder of the
// user's Google Drive. Files there are invisible in the Drive UI and scoped
// to this OAuth client.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	appDataFolder = "appDataFolder"
	fileFields    = "id, name, modifiedTime, version"
)

// Store talks to the Drive v3 API.
type Store struct {
	files *drive.FilesService
}

// NewStore builds a Drive client that authenticates with ts.
func NewStore(ctx context.Context, ts oauth2.TokenSource) (*Store, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Store{files: svc.Files}, nil
}

var _ portsrepo.RemoteBlobStore = (*Store)(nil)

func (s *Store) Find(ctx context.Context, name string) (*domain.RemoteHandle, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", strings.ReplaceAll(name, "'", `\'`))
	list, err := s.files.List().
		Spaces(appDataFolder).
		Q(q).
		OrderBy("modifiedTime desc").
		PageSize(1).
		Fields(googleapi.Field("files(" + fileFields + ")")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", mapError(err))
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return handleFromFile(list.Files[0]), nil
}

func (s *Store) Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	if existing == nil {
		f, err := s.files.Create(&drive.File{Name: name, Parents: []string{appDataFolder}, MimeType: "application/json"}).
			Media(bytes.NewReader(data)).
			Fields(fileFields).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("create drive file: %w", mapError(err))
		}
		return handleFromFile(f), nil
	}

	// Drive has no conditional update; compare versions right before writing.
	current, err := s.files.Get(existing.ID).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get drive file: %w", mapError(err))
	}
	if existing.Revision != "" && strconv.FormatInt(current.Version, 10) != existing.Revision {
		return nil, fmt.Errorf("drive file %q: %w", name, apperrors.ErrStaleRemote)
	}

	f, err := s.files.Update(existing.ID, &drive.File{}).
		Media(bytes.NewReader(data)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("update drive file: %w", mapError(err))
	}
	return handleFromFile(f), nil
}

func (s *Store) Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error) {
	resp, err := s.files.Get(handle.ID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download drive file: %w", mapError(err))
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read drive file: %w", err)
	}
	return data, nil
}

func handleFromFile(f *drive.File) *domain.RemoteHandle {
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return &domain.RemoteHandle{
		ID:         f.Id,
		Name:       f.Name,
		Revision:   strconv.FormatInt(f.Version, 10),
		ModifiedAt: modified,
	}
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Join(apperrors.ErrUnauthorized, err)
	case http.StatusNotFound:
		return errors.Join(apperrors.ErrNotFound, err)
	}
	return err
}
