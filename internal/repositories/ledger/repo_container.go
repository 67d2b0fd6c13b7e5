package ledger

import (
	"context"

	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

// NewRepositoryProvider binds every typed repository to store, which may be a transaction.
func NewRepositoryProvider(store portsrepo.RecordStore) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TransactionRepo: newTransactionRepository(store),
		AccountRepo:     newAccountRepository(store),
		CategoryRepo:    newCategoryRepository(store),
		BudgetRepo:      newBudgetRepository(store),
		ConflictRepo:    newConflictRepository(store),
		SyncStateRepo:   newSyncStateRepository(store),
	}
}

type unitOfWork struct {
	store portsrepo.LedgerStore
	repos portsrepo.RepositoryProvider
}

// NewUnitOfWork wraps a ledger store.
func NewUnitOfWork(store portsrepo.LedgerStore) portsrepo.UnitOfWork {
	return &unitOfWork{store: store, repos: NewRepositoryProvider(store)}
}

func (u *unitOfWork) Repositories() portsrepo.RepositoryProvider {
	return u.repos
}

func (u *unitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos portsrepo.RepositoryProvider) error) error {
	return u.store.WithTransaction(ctx, func(ctx context.Context, tx portsrepo.RecordStore) error {
		return fn(ctx, NewRepositoryProvider(tx))
	})
}
