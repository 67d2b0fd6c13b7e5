package ledger

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type accountRepository struct {
	records recordRepository[domain.Account]
}

func newAccountRepository(store portsrepo.RecordStore) *accountRepository {
	return &accountRepository{records: recordRepository[domain.Account]{store: store, kind: domain.KindAccount}}
}

var _ portsrepo.AccountRepositoryFacade = (*accountRepository)(nil)

func (r *accountRepository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.records.get(ctx, id)
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return r.records.scan(ctx, portsrepo.ScanQuery{})
}

func (r *accountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	return r.records.put(ctx, account)
}

func (r *accountRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}
