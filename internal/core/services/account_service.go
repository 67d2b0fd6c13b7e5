package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/shopspring/decimal"
)

// accountService implements the AccountSvcFacade interface
type accountService struct {
	balanceEngine
	// nameMu makes the duplicate-name check and the write one step.
	nameMu sync.Mutex
}

// NewAccountService creates the account service on top of the shared gate.
func NewAccountService(uow portsrepo.UnitOfWork, gate *LedgerGate) portssvc.AccountSvcFacade {
	return &accountService{balanceEngine: balanceEngine{uow: uow, gate: gate}}
}

// Ensure accountService implements the AccountSvcFacade interface
var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func (s *accountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*domain.Account, error) {
	if err := utils.ValidateStruct(req); err != nil {
		s.LogWarn(ctx, "Invalid create account request", slog.String("error", err.Error()))
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}

	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	now := s.Now()
	account := domain.Account{
		AccountID:      newID(),
		Name:           name,
		AccountType:    req.AccountType,
		OpeningBalance: req.OpeningBalance,
		Balance:        req.OpeningBalance,
		CurrencyCode:   strings.ToUpper(req.CurrencyCode),
		IsActive:       true,
		AuditFields:    domain.AuditFields{CreatedAt: now, UpdatedAt: now},
	}

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		if err := ensureUniqueAccountName(ctx, repos, account); err != nil {
			return err
		}
		return repos.AccountRepo.SaveAccount(ctx, account)
	})
	if err != nil {
		s.LogFailure(ctx, err, "Failed to create account", slog.String("account_id", account.AccountID))
		return nil, err
	}

	s.LogInfo(ctx, "Account created successfully", slog.String("account_id", account.AccountID))
	return &account, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.uow.Repositories().AccountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account by ID", slog.String("account_id", accountID))
		}
		return nil, err // Propagate error (including NotFound)
	}
	s.LogDebug(ctx, "Account retrieved successfully", slog.String("account_id", account.AccountID))
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.uow.Repositories().AccountRepo.ListAccounts(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list accounts")
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if accounts == nil {
		return []domain.Account{}, nil // Return empty slice if repo returns nil
	}
	return accounts, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest) (*domain.Account, error) {
	if req.Balance != nil {
		err := apperrors.NewValidationError("balance", "is derived from transactions and cannot be set; adjust the opening balance instead")
		s.LogWarn(ctx, "Rejected direct balance update", slog.String("account_id", accountID))
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.mutateAccount(ctx, accountID, "update", func(ctx context.Context, repos portsrepo.RepositoryProvider, acc *domain.Account) error {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperrors.NewValidationError("name", "is required")
			}
			acc.Name = name
			if err := ensureUniqueAccountName(ctx, repos, *acc); err != nil {
				return err
			}
		}
		if req.AccountType != nil {
			acc.AccountType = *req.AccountType
		}
		if req.CurrencyCode != nil {
			currency := strings.ToUpper(*req.CurrencyCode)
			if currency != acc.CurrencyCode {
				txns, err := repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{AccountID: acc.AccountID})
				if err != nil {
					return err
				}
				if len(txns) > 0 {
					return apperrors.NewValidationError("currency", "cannot change the currency of an account with transactions")
				}
				acc.CurrencyCode = currency
			}
		}
		if req.IsActive != nil {
			acc.IsActive = *req.IsActive
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Account updated successfully", slog.String("account_id", accountID))
	return account, nil
}

// AdjustOpeningBalance applies the correction to both fields so the balance
// invariant keeps holding.
func (s *accountService) AdjustOpeningBalance(ctx context.Context, accountID string, openingBalance decimal.Decimal) (*domain.Account, error) {
	var account *domain.Account
	var delta decimal.Decimal
	err := s.mutateAccount(ctx, accountID, "adjust_opening_balance", func(_ context.Context, _ portsrepo.RepositoryProvider, acc *domain.Account) error {
		delta = openingBalance.Sub(acc.OpeningBalance)
		acc.OpeningBalance = openingBalance
		acc.Balance = acc.Balance.Add(delta)
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Opening balance adjusted",
		slog.String("account_id", accountID),
		slog.String("delta", delta.String()))
	return account, nil
}

func (s *accountService) DeactivateAccount(ctx context.Context, accountID string) error {
	err := s.mutateAccount(ctx, accountID, "deactivate", func(_ context.Context, _ portsrepo.RepositoryProvider, acc *domain.Account) error {
		acc.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}
	s.LogInfo(ctx, "Account deactivated successfully", slog.String("account_id", accountID))
	return nil
}

func (s *accountService) DeleteAccount(ctx context.Context, accountID string) error {
	release, err := s.gate.LockAccounts(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		txns, err := repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{AccountID: accountID})
		if err != nil {
			return err
		}
		if len(txns) > 0 {
			return fmt.Errorf("%w: account %s still has %d transactions", apperrors.ErrConflict, accountID, len(txns))
		}
		return repos.AccountRepo.DeleteAccount(ctx, accountID)
	})
	if err = s.settle(ctx, "delete_account", err, accountID); err != nil {
		s.LogFailure(ctx, err, "Failed to delete account", slog.String("account_id", accountID))
		return err
	}
	s.gate.Unfence(accountID)
	s.LogInfo(ctx, "Account deleted", slog.String("account_id", accountID))
	return nil
}

// VerifyAccount replays the log under the account lock so the comparison is
// not racing a mutation.
func (s *accountService) VerifyAccount(ctx context.Context, accountID string) (*dto.AccountVerificationResponse, error) {
	release, err := s.gate.LockAccounts(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	repos := s.uow.Repositories()
	account, err := repos.AccountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	replayed, err := replayAccount(ctx, repos, *account)
	if err != nil {
		s.LogError(ctx, err, "Failed to replay account", slog.String("account_id", accountID))
		return nil, err
	}

	drift := account.Balance.Sub(replayed)
	resp := &dto.AccountVerificationResponse{
		AccountID:       accountID,
		StoredBalance:   account.Balance,
		ReplayedBalance: replayed,
		Drift:           drift,
		Consistent:      drift.IsZero(),
		Fenced:          s.gate.IsFenced(accountID),
	}
	if !resp.Consistent {
		s.LogWarn(ctx, "Account balance drift detected",
			slog.String("account_id", accountID),
			slog.String("drift", drift.String()))
	}
	return resp, nil
}

// ReconcileAccount is the only way out of a fence.
func (s *accountService) ReconcileAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	release, err := s.gate.LockAccounts(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var account *domain.Account
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		acc, err := repos.AccountRepo.FindAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		replayed, err := replayAccount(ctx, repos, *acc)
		if err != nil {
			return err
		}
		if !acc.Balance.Equal(replayed) {
			s.LogWarn(ctx, "Reconciling drifted balance",
				slog.String("account_id", accountID),
				slog.String("stored", acc.Balance.String()),
				slog.String("replayed", replayed.String()))
			acc.Balance = replayed
			acc.Touch(s.Now())
			if err := repos.AccountRepo.SaveAccount(ctx, *acc); err != nil {
				return err
			}
		}
		account = acc
		return nil
	})
	if err != nil {
		s.LogFailure(ctx, err, "Failed to reconcile account", slog.String("account_id", accountID))
		return nil, err
	}

	s.gate.Unfence(accountID)
	s.LogInfo(ctx, "Account reconciled", slog.String("account_id", accountID))
	return account, nil
}

// mutateAccount loads the account under its lock, lets fn change it and saves it.
func (s *accountService) mutateAccount(ctx context.Context, accountID, op string, fn func(ctx context.Context, repos portsrepo.RepositoryProvider, acc *domain.Account) error) error {
	release, err := s.gate.LockAccounts(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()
	if err := s.gate.CheckFenced(accountID); err != nil {
		return err
	}
	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		acc, err := repos.AccountRepo.FindAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, acc); err != nil {
			return err
		}
		acc.Touch(s.Now())
		return repos.AccountRepo.SaveAccount(ctx, *acc)
	})
	if err = s.settle(ctx, op, err, accountID); err != nil {
		s.LogFailure(ctx, err, "Failed to "+strings.ReplaceAll(op, "_", " ")+" account", slog.String("account_id", accountID))
	}
	return err
}

func ensureUniqueAccountName(ctx context.Context, repos portsrepo.RepositoryProvider, account domain.Account) error {
	accounts, err := repos.AccountRepo.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, other := range accounts {
		if other.AccountID != account.AccountID && other.NaturalKey() == account.NaturalKey() {
			return fmt.Errorf("%w: an account named %q already exists", apperrors.ErrDuplicate, other.Name)
		}
	}
	return nil
}
