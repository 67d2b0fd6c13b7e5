package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

// recordRepository maps one entity kind onto the raw record store.
type recordRepository[T domain.Record] struct {
	store portsrepo.RecordStore
	kind  domain.EntityKind
}

func (r recordRepository[T]) get(ctx context.Context, id string) (*T, error) {
	raw, err := r.store.GetRecord(ctx, r.kind, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", r.kind, id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", r.kind, id, err)
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", r.kind, id, err)
	}
	return &rec, nil
}

func (r recordRepository[T]) put(ctx context.Context, rec T) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", r.kind, rec.RecordID(), err)
	}
	if err := r.store.PutRecord(ctx, r.kind, rec.RecordID(), rec.IndexKeys(), raw); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", r.kind, rec.RecordID(), err)
	}
	return nil
}

func (r recordRepository[T]) delete(ctx context.Context, id string) error {
	if err := r.store.DeleteRecord(ctx, r.kind, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%s %s: %w", r.kind, id, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s %s: %w", r.kind, id, err)
	}
	return nil
}

func (r recordRepository[T]) scan(ctx context.Context, q portsrepo.ScanQuery) ([]T, error) {
	q.Kind = r.kind
	raws, err := r.store.ScanRecords(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", r.kind, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
