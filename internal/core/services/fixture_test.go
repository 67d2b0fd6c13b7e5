package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/adapters/database/memory"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/core/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/repositories/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected write failure")

// faultyStore wraps the memory store. When failAccounts is set every account
// write fails; when brokenRollback is set a failed transaction keeps its
// partial writes and reports portsrepo.ErrRollbackFailed.
type faultyStore struct {
	*memory.Store
	failAccounts   atomic.Bool
	brokenRollback atomic.Bool
}

type faultyTx struct {
	portsrepo.RecordStore
	parent *faultyStore
}

func (t faultyTx) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	if kind == domain.KindAccount && t.parent.failAccounts.Load() {
		return errInjected
	}
	return t.RecordStore.PutRecord(ctx, kind, id, keys, data)
}

func (s *faultyStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx portsrepo.RecordStore) error) error {
	if s.brokenRollback.Load() {
		if err := fn(ctx, faultyTx{RecordStore: s.Store, parent: s}); err != nil {
			return fmt.Errorf("%w: %v", portsrepo.ErrRollbackFailed, err)
		}
		return nil
	}
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx portsrepo.RecordStore) error {
		return fn(ctx, faultyTx{RecordStore: tx, parent: s})
	})
}

// ledgerFixture wires the ledger services over one in-memory store.
type ledgerFixture struct {
	store        *faultyStore
	uow          portsrepo.UnitOfWork
	gate         *services.LedgerGate
	cache        *services.CategoryCache
	accounts     portssvc.AccountSvcFacade
	categories   portssvc.CategorySvcFacade
	transactions portssvc.TransactionSvcFacade
	budgets      portssvc.BudgetSvcFacade
}

func newLedgerFixture(t *testing.T, budgetOptions ...services.BudgetServiceOption) *ledgerFixture {
	t.Helper()
	store := &faultyStore{Store: memory.NewStore()}
	uow := ledger.NewUnitOfWork(store)
	gate := services.NewLedgerGate()
	cache, err := services.NewCategoryCache(services.DefaultCategoryCacheSize)
	require.NoError(t, err)

	f := &ledgerFixture{
		store:      store,
		uow:        uow,
		gate:       gate,
		cache:      cache,
		accounts:   services.NewAccountService(uow, gate),
		categories: services.NewCategoryService(uow, gate, cache),
	}
	f.transactions = services.NewTransactionService(uow, gate, services.WithTransactionCategoryCache(cache))
	f.budgets = services.NewBudgetService(uow, gate, append([]services.BudgetServiceOption{services.WithBudgetCategoryCache(cache)}, budgetOptions...)...)
	require.NoError(t, f.categories.EnsureDefaultCategories(context.Background()))
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *ledgerFixture) account(t *testing.T, name, opening string) *domain.Account {
	t.Helper()
	acc, err := f.accounts.CreateAccount(context.Background(), dto.CreateAccountRequest{
		Name:           name,
		AccountType:    domain.AccountChecking,
		CurrencyCode:   "USD",
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return acc
}

func (f *ledgerFixture) expense(t *testing.T, accountID, amount, date string) *domain.Transaction {
	t.Helper()
	txn, err := f.transactions.CreateTransaction(context.Background(), dto.CreateTransactionRequest{
		Amount:      dec(amount),
		Type:        domain.TransactionExpense,
		CategoryID:  "cat-groceries",
		AccountID:   accountID,
		Date:        day(date),
		Description: "Groceries " + amount,
	})
	require.NoError(t, err)
	return txn
}

func (f *ledgerFixture) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetAccountByID(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

// requireReplayConsistent asserts that every stored balance equals the replay of its log.
func (f *ledgerFixture) requireReplayConsistent(t *testing.T) {
	t.Helper()
	accounts, err := f.accounts.ListAccounts(context.Background())
	require.NoError(t, err)
	for _, a := range accounts {
		v, err := f.accounts.VerifyAccount(context.Background(), a.AccountID)
		require.NoError(t, err)
		require.Truef(t, v.Consistent, "account %s drifted by %s", a.Name, v.Drift)
	}
}

func newTransactionServiceWithQueue(f *ledgerFixture, queue portssvc.StatusJobQueue) portssvc.TransactionSvcFacade {
	return services.NewTransactionService(f.uow, f.gate,
		services.WithTransactionCategoryCache(f.cache),
		services.WithStatusQueue(queue))
}
