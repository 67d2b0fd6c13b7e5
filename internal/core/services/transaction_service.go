package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/SscSPs/money_sync_app/internal/utils/accounting"
	"github.com/SscSPs/money_sync_app/internal/utils/pagination"
)

const (
	defaultTransactionPageSize = 50
	// maxRelockAttempts bounds how often a mutation re-takes its locks when a
	// concurrent update moved the transaction to another account.
	maxRelockAttempts = 3
)

// transactionService is the balance consistency engine for transactions.
type transactionService struct {
	balanceEngine
	statusQueue portssvc.StatusJobQueue
}

// TransactionServiceOption is a functional option for configuring the transaction service
type TransactionServiceOption func(*transactionService)

// WithStatusQueue hands newly created pending transactions to the status worker.
func WithStatusQueue(queue portssvc.StatusJobQueue) TransactionServiceOption {
	return func(s *transactionService) {
		s.statusQueue = queue
	}
}

// WithTransactionCategoryCache shares a category cache with other services.
func WithTransactionCategoryCache(cache *CategoryCache) TransactionServiceOption {
	return func(s *transactionService) {
		s.cache = cache
	}
}

// NewTransactionService creates the transaction engine.
func NewTransactionService(uow portsrepo.UnitOfWork, gate *LedgerGate, options ...TransactionServiceOption) portssvc.TransactionSvcFacade {
	svc := &transactionService{balanceEngine: balanceEngine{uow: uow, gate: gate}}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.TransactionSvcFacade = (*transactionService)(nil)

func (s *transactionService) CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest) (*domain.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		s.LogWarn(ctx, "Invalid create transaction request", slog.String("error", err.Error()))
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.TransactionCompleted
	}
	txn := domain.Transaction{
		TransactionID: newID(),
		Amount:        req.Amount,
		Type:          req.Type,
		CategoryID:    req.CategoryID,
		AccountID:     req.AccountID,
		Date:          req.Date.UTC(),
		Description:   req.Description,
		CurrencyCode:  req.CurrencyCode,
		Status:        status,
	}

	release, err := s.gate.LockAccounts(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := s.gate.CheckFenced(txn.AccountID); err != nil {
		return nil, err
	}

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		if err := s.validateTransaction(ctx, repos, &txn); err != nil {
			return err
		}
		now := s.Now()
		txn.CreatedAt = now
		txn.UpdatedAt = now
		if err := repos.TransactionRepo.SaveTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return s.applyDeltas(ctx, repos, accounting.BalanceDeltas(nil, &txn), now)
	})
	if err = s.settle(ctx, "create", err, txn.AccountID); err != nil {
		s.LogFailure(ctx, err, "Failed to create transaction", slog.String("account_id", txn.AccountID))
		return nil, err
	}

	s.LogInfo(ctx, "Transaction created",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("account_id", txn.AccountID),
		slog.String("status", string(txn.Status)))

	if txn.Status == domain.TransactionPending && s.statusQueue != nil {
		if err := s.statusQueue.EnqueueStatusJob(ctx, txn.TransactionID, domain.TransactionCompleted); err != nil {
			// The transaction stays pending and can still be completed through the API.
			s.LogError(ctx, err, "Failed to enqueue status job", slog.String("transaction_id", txn.TransactionID))
		}
	}
	return &txn, nil
}

func (s *transactionService) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := s.uow.Repositories().TransactionRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find transaction by ID", slog.String("transaction_id", transactionID))
		}
		return nil, err
	}
	return txn, nil
}

func (s *transactionService) ListTransactions(ctx context.Context, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error) {
	if params.Limit <= 0 {
		params.Limit = defaultTransactionPageSize
	}
	if err := utils.ValidateStruct(params); err != nil {
		return nil, err
	}

	txns, err := s.uow.Repositories().TransactionRepo.ListTransactions(ctx, params.Filter())
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions")
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	if params.NextToken != nil && *params.NextToken != "" {
		cursorDate, cursorID, err := pagination.DecodeToken(*params.NextToken)
		if err != nil {
			return nil, apperrors.NewValidationError("nextToken", "%v", err)
		}
		start := len(txns)
		for i, t := range txns {
			if pagination.After(t.Date, t.TransactionID, cursorDate, cursorID) {
				start = i
				break
			}
		}
		txns = txns[start:]
	}

	resp := &dto.ListTransactionsResponse{Transactions: []dto.TransactionResponse{}}
	if len(txns) > params.Limit {
		last := txns[params.Limit-1]
		token := pagination.EncodeToken(last.Date, last.TransactionID)
		resp.NextToken = &token
		txns = txns[:params.Limit]
	}
	for i := range txns {
		resp.Transactions = append(resp.Transactions, dto.ToTransactionResponse(&txns[i]))
	}

	s.LogDebug(ctx, "Transactions listed", slog.Int("count", len(resp.Transactions)))
	return resp, nil
}

// UpdateTransaction reverts the original effect, validates the patched record,
// persists it and applies its effect, all in one store transaction. A rejected
// patch leaves the record and every balance untouched.
func (s *transactionService) UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest) (*domain.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var updated domain.Transaction
	err := s.withTransactionLocked(ctx, transactionID, accountsFromPatch(req), func(ctx context.Context, repos portsrepo.RepositoryProvider, original domain.Transaction) error {
		updated = applyTransactionPatch(original, req)
		now := s.Now()

		if err := s.applyDeltas(ctx, repos, accounting.BalanceDeltas(&original, nil), now); err != nil {
			return err
		}
		if err := s.validateTransaction(ctx, repos, &updated); err != nil {
			return err
		}
		updated.UpdatedAt = now
		if err := repos.TransactionRepo.SaveTransaction(ctx, updated); err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return s.applyDeltas(ctx, repos, accounting.BalanceDeltas(nil, &updated), now)
	}, "update")
	if err != nil {
		s.LogFailure(ctx, err, "Failed to update transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}

	s.LogInfo(ctx, "Transaction updated",
		slog.String("transaction_id", transactionID),
		slog.String("account_id", updated.AccountID))
	return &updated, nil
}

// DeleteTransaction reverts the effect and removes the record.
func (s *transactionService) DeleteTransaction(ctx context.Context, transactionID string) error {
	err := s.withTransactionLocked(ctx, transactionID, nil, func(ctx context.Context, repos portsrepo.RepositoryProvider, original domain.Transaction) error {
		if err := s.applyDeltas(ctx, repos, accounting.BalanceDeltas(&original, nil), s.Now()); err != nil {
			return err
		}
		if err := repos.TransactionRepo.DeleteTransaction(ctx, transactionID); err != nil {
			return fmt.Errorf("failed to delete transaction after reverting its effect: %w", err)
		}
		return nil
	}, "delete")
	if err != nil {
		s.LogFailure(ctx, err, "Failed to delete transaction", slog.String("transaction_id", transactionID))
		return err
	}
	s.LogInfo(ctx, "Transaction deleted", slog.String("transaction_id", transactionID))
	return nil
}

func (s *transactionService) TransitionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error) {
	if !status.IsValid() {
		return nil, apperrors.NewValidationError("status", "unknown transaction status %q", status)
	}

	var result domain.Transaction
	err := s.withTransactionLocked(ctx, transactionID, nil, func(ctx context.Context, repos portsrepo.RepositoryProvider, original domain.Transaction) error {
		result = original
		if original.Status == status {
			return nil
		}
		if !original.Status.CanTransitionTo(status) {
			return apperrors.NewValidationError("status", "cannot move from %s to %s", original.Status, status)
		}
		now := s.Now()
		result.Status = status
		result.UpdatedAt = now
		if err := repos.TransactionRepo.SaveTransaction(ctx, result); err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return s.applyDeltas(ctx, repos, accounting.BalanceDeltas(&original, &result), now)
	}, "transition")
	if err != nil {
		s.LogFailure(ctx, err, "Failed to transition transaction status",
			slog.String("transaction_id", transactionID),
			slog.String("status", string(status)))
		return nil, err
	}

	s.LogInfo(ctx, "Transaction status changed",
		slog.String("transaction_id", transactionID),
		slog.String("status", string(result.Status)))
	return &result, nil
}

// withTransactionLocked locks the account the transaction currently lives on,
// plus extra, and runs fn inside a store transaction with the freshly loaded
// record. If a concurrent update moved the record in between, the locks are
// re-taken.
func (s *transactionService) withTransactionLocked(
	ctx context.Context,
	transactionID string,
	extra []string,
	fn func(ctx context.Context, repos portsrepo.RepositoryProvider, original domain.Transaction) error,
	op string,
) error {
	for attempt := 0; attempt < maxRelockAttempts; attempt++ {
		current, err := s.uow.Repositories().TransactionRepo.FindTransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		locked := append([]string{current.AccountID}, extra...)

		release, err := s.gate.LockAccounts(ctx, locked...)
		if err != nil {
			return err
		}
		if err := s.gate.CheckFenced(locked...); err != nil {
			release()
			return err
		}

		moved := false
		err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
			original, err := repos.TransactionRepo.FindTransactionByID(ctx, transactionID)
			if err != nil {
				return err
			}
			if original.AccountID != current.AccountID {
				moved = true
				return errTransactionMoved
			}
			return fn(ctx, repos, *original)
		})
		release()

		if moved {
			continue
		}
		return s.settle(ctx, op, err, locked...)
	}
	return fmt.Errorf("%w: transaction %s is being modified concurrently", apperrors.ErrConflict, transactionID)
}

var errTransactionMoved = errors.New("transaction moved to another account")

func accountsFromPatch(req dto.UpdateTransactionRequest) []string {
	if req.AccountID == nil {
		return nil
	}
	return []string{*req.AccountID}
}

func applyTransactionPatch(t domain.Transaction, req dto.UpdateTransactionRequest) domain.Transaction {
	accountChanged := req.AccountID != nil && *req.AccountID != t.AccountID
	if req.Amount != nil {
		t.Amount = *req.Amount
	}
	if req.Type != nil {
		t.Type = *req.Type
	}
	if req.CategoryID != nil {
		t.CategoryID = *req.CategoryID
	}
	if req.AccountID != nil {
		t.AccountID = *req.AccountID
	}
	if req.Date != nil {
		t.Date = req.Date.UTC()
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.CurrencyCode != nil {
		t.CurrencyCode = strings.ToUpper(*req.CurrencyCode)
	} else if accountChanged {
		// Re-derived from the new account during validation.
		t.CurrencyCode = ""
	}
	return t
}
