package services

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/shopspring/decimal"
)

// TransactionReaderSvc defines read operations for transaction data
type TransactionReaderSvc interface {
	GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// ListTransactions returns one page ordered by date, then id.
	ListTransactions(ctx context.Context, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error)
}

// TransactionWriterSvc defines the balance-affecting operations on transactions.
// Every call either applies its full balance effect or none of it.
type TransactionWriterSvc interface {
	CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	// TransitionStatus is idempotent: moving to the current status is a no-op.
	TransitionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error)
}

// TransactionSvcFacade combines all transaction-related service interfaces
type TransactionSvcFacade interface {
	TransactionReaderSvc
	TransactionWriterSvc
}

// AccountReaderSvc defines read operations for account data
type AccountReaderSvc interface {
	GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// AccountWriterSvc defines write operations for account data
type AccountWriterSvc interface {
	CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*domain.Account, error)
	// UpdateAccount rejects any attempt to set the balance.
	UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest) (*domain.Account, error)
	// AdjustOpeningBalance applies the difference to both the opening balance and the balance.
	AdjustOpeningBalance(ctx context.Context, accountID string, openingBalance decimal.Decimal) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, accountID string) error
	// DeleteAccount fails with apperrors.ErrConflict while transactions reference the account.
	DeleteAccount(ctx context.Context, accountID string) error
}

// AccountConsistencySvc checks and repairs the balance invariant.
type AccountConsistencySvc interface {
	// VerifyAccount replays the transaction log and reports any drift without changing anything.
	VerifyAccount(ctx context.Context, accountID string) (*dto.AccountVerificationResponse, error)
	// ReconcileAccount rewrites the balance from the log and lifts any fence on the account.
	ReconcileAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

// AccountSvcFacade combines all account-related service interfaces
type AccountSvcFacade interface {
	AccountReaderSvc
	AccountWriterSvc
	AccountConsistencySvc
}

// CategorySvcFacade manages categories.
type CategorySvcFacade interface {
	CreateCategory(ctx context.Context, req dto.CreateCategoryRequest) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, categoryID string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, categoryID string, req dto.UpdateCategoryRequest) (*domain.Category, error)
	// DeleteCategory fails with apperrors.ErrConflict while transactions or budgets reference it.
	DeleteCategory(ctx context.Context, categoryID string) error
	// EnsureDefaultCategories seeds the default set into an empty ledger.
	EnsureDefaultCategories(ctx context.Context) error
}

// StatusJobQueue hands pending transactions to the background status worker.
type StatusJobQueue interface {
	EnqueueStatusJob(ctx context.Context, transactionID string, target domain.TransactionStatus) error
}
