package ledger

import (
	"context"
	"errors"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type conflictRepository struct {
	records recordRepository[domain.Conflict]
}

func newConflictRepository(store portsrepo.RecordStore) *conflictRepository {
	return &conflictRepository{records: recordRepository[domain.Conflict]{store: store, kind: domain.KindConflict}}
}

var _ portsrepo.ConflictRepositoryFacade = (*conflictRepository)(nil)

func (r *conflictRepository) FindConflictByID(ctx context.Context, id string) (*domain.Conflict, error) {
	return r.records.get(ctx, id)
}

func (r *conflictRepository) ListConflicts(ctx context.Context) ([]domain.Conflict, error) {
	return r.records.scan(ctx, portsrepo.ScanQuery{})
}

func (r *conflictRepository) SaveConflict(ctx context.Context, conflict domain.Conflict) error {
	return r.records.put(ctx, conflict)
}

func (r *conflictRepository) DeleteConflict(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}

type syncStateRepository struct {
	records recordRepository[domain.SyncState]
}

func newSyncStateRepository(store portsrepo.RecordStore) *syncStateRepository {
	return &syncStateRepository{records: recordRepository[domain.SyncState]{store: store, kind: domain.KindSyncState}}
}

var _ portsrepo.SyncStateRepositoryFacade = (*syncStateRepository)(nil)

func (r *syncStateRepository) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	state, err := r.records.get(ctx, domain.LocalSyncStateID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &domain.SyncState{StateID: domain.LocalSyncStateID}, nil
	}
	return state, err
}

func (r *syncStateRepository) SaveSyncState(ctx context.Context, state domain.SyncState) error {
	state.StateID = domain.LocalSyncStateID
	return r.records.put(ctx, state)
}
