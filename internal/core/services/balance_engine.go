package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// balanceEngine holds what the transaction and account services share: the
// gate, the validation rules and the only code path that writes Account.Balance.
type balanceEngine struct {
	BaseService
	uow   portsrepo.UnitOfWork
	gate  *LedgerGate
	cache *CategoryCache
}

// validateTransaction checks txn against the store as seen by repos. A blank
// currency is filled in from the account.
func (e *balanceEngine) validateTransaction(ctx context.Context, repos portsrepo.RepositoryProvider, txn *domain.Transaction) error {
	if !txn.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if !txn.Type.IsValid() {
		return apperrors.NewValidationError("type", "unknown transaction type %q", txn.Type)
	}
	if !txn.Status.IsValid() {
		return apperrors.NewValidationError("status", "unknown transaction status %q", txn.Status)
	}
	txn.Description = strings.TrimSpace(txn.Description)
	if txn.Description == "" {
		return apperrors.NewValidationError("description", "is required")
	}
	if txn.Date.IsZero() {
		return apperrors.NewValidationError("date", "is required")
	}
	if txn.AccountID == "" {
		return apperrors.NewValidationError("account", "is required")
	}
	if txn.CategoryID == "" {
		return apperrors.NewValidationError("category", "is required")
	}

	account, err := repos.AccountRepo.FindAccountByID(ctx, txn.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &apperrors.ReferentialError{Field: "account", Kind: "account", ID: txn.AccountID, Cause: "not found"}
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !account.IsActive {
		return apperrors.NewValidationError("account", "account %s is inactive", account.AccountID)
	}

	txn.CurrencyCode = strings.ToUpper(strings.TrimSpace(txn.CurrencyCode))
	if txn.CurrencyCode == "" {
		txn.CurrencyCode = account.CurrencyCode
	}
	if txn.CurrencyCode != account.CurrencyCode {
		return apperrors.NewValidationError("currency", "must match the account currency %s", account.CurrencyCode)
	}

	category, err := e.cache.Resolve(ctx, repos.CategoryRepo, "category", txn.CategoryID)
	if err != nil {
		return err
	}
	if !category.Accepts(txn.Type) {
		return &apperrors.ReferentialError{
			Field: "category",
			Kind:  "category",
			ID:    txn.CategoryID,
			Cause: fmt.Sprintf("%s category cannot hold %s transactions", category.CategoryType, txn.Type),
		}
	}
	return nil
}

// applyDeltas adds each delta to its account balance. Accounts are written in
// id order.
func (e *balanceEngine) applyDeltas(ctx context.Context, repos portsrepo.RepositoryProvider, deltas map[string]decimal.Decimal, now time.Time) error {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		account, err := repos.AccountRepo.FindAccountByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return &apperrors.ReferentialError{Field: "account", Kind: "account", ID: id, Cause: "not found"}
			}
			return fmt.Errorf("failed to load account %s: %w", id, err)
		}
		account.Balance = account.Balance.Add(deltas[id])
		account.Touch(now)
		if err := repos.AccountRepo.SaveAccount(ctx, *account); err != nil {
			return fmt.Errorf("failed to save account %s: %w", id, err)
		}
	}
	return nil
}

// settle maps a failed store transaction to the error surfaced to callers.
// When the rollback itself failed the balances of the involved accounts can
// no longer be trusted, so they are fenced until reconciled.
func (e *balanceEngine) settle(ctx context.Context, op string, err error, accountIDs ...string) error {
	if err == nil {
		return nil
	}
	if !errRollbackFailed(err) {
		return err
	}

	var first *apperrors.ConsistencyError
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		cErr := &apperrors.ConsistencyError{AccountID: id, Op: op, Err: err}
		e.gate.Fence(cErr)
		e.LogError(ctx, err, "Account fenced after failed rollback",
			slog.String("account_id", id),
			slog.String("op", op))
		if first == nil {
			first = cErr
		}
	}
	if first == nil {
		return &apperrors.ConsistencyError{Op: op, Err: err}
	}
	return first
}

// replayAccount recomputes the balance the account must have from its log.
func replayAccount(ctx context.Context, repos portsrepo.RepositoryProvider, account domain.Account) (decimal.Decimal, error) {
	txns, err := repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{AccountID: account.AccountID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list transactions for account %s: %w", account.AccountID, err)
	}
	return domain.ReplayBalance(account.OpeningBalance, txns), nil
}
