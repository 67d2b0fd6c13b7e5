package repositories

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
)

// TransactionReader defines read operations for transaction data
type TransactionReader interface {
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns matches ordered by date, then id.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

// TransactionWriter defines write operations for transaction data
type TransactionWriter interface {
	SaveTransaction(ctx context.Context, txn domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// TransactionRepositoryFacade combines transaction reads and writes.
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
}

// AccountReader defines read operations for account data
type AccountReader interface {
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// AccountWriter defines write operations for account data
type AccountWriter interface {
	SaveAccount(ctx context.Context, account domain.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// AccountRepositoryFacade combines account reads and writes.
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
}

// CategoryRepositoryFacade covers category persistence.
type CategoryRepositoryFacade interface {
	FindCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SaveCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// BudgetRepositoryFacade covers budget persistence.
type BudgetRepositoryFacade interface {
	FindBudgetByID(ctx context.Context, id string) (*domain.Budget, error)
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
	ListBudgetsByCategory(ctx context.Context, categoryID string) ([]domain.Budget, error)
	SaveBudget(ctx context.Context, budget domain.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

// ConflictRepositoryFacade covers persisted sync conflicts.
type ConflictRepositoryFacade interface {
	FindConflictByID(ctx context.Context, id string) (*domain.Conflict, error)
	ListConflicts(ctx context.Context) ([]domain.Conflict, error)
	SaveConflict(ctx context.Context, conflict domain.Conflict) error
	DeleteConflict(ctx context.Context, id string) error
}

// SyncStateRepositoryFacade covers the per-device sync bookkeeping.
type SyncStateRepositoryFacade interface {
	// GetSyncState returns a zero state with LocalSyncStateID when none was saved yet.
	GetSyncState(ctx context.Context) (*domain.SyncState, error)
	SaveSyncState(ctx context.Context, state domain.SyncState) error
}

// RepositoryProvider holds all repository interfaces needed by services.
// Providers obtained inside a transaction write through that transaction.
type RepositoryProvider struct {
	TransactionRepo TransactionRepositoryFacade
	AccountRepo     AccountRepositoryFacade
	CategoryRepo    CategoryRepositoryFacade
	BudgetRepo      BudgetRepositoryFacade
	ConflictRepo    ConflictRepositoryFacade
	SyncStateRepo   SyncStateRepositoryFacade
}

// UnitOfWork hands out repositories bound to the store or to one of its transactions.
type UnitOfWork interface {
	Repositories() RepositoryProvider
	// WithinTransaction runs fn with repositories that commit or roll back together.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos RepositoryProvider) error) error
}
