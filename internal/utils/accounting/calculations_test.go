package accounting_test

import (
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/utils/accounting"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func expense(account string, amount int64) *domain.Transaction {
	return &domain.Transaction{AccountID: account, Amount: decimal.NewFromInt(amount), Type: domain.TransactionExpense, Status: domain.TransactionCompleted}
}

func TestBalanceDeltas(t *testing.T) {
	t.Run("amount change on same account", func(t *testing.T) {
		d := accounting.BalanceDeltas(expense("a", 150), expense("a", 200))
		assert.Equal(t, "-50", d["a"].String())
	})

	t.Run("move between accounts", func(t *testing.T) {
		d := accounting.BalanceDeltas(expense("a", 150), expense("b", 150))
		assert.Equal(t, "150", d["a"].String())
		assert.Equal(t, "-150", d["b"].String())
	})

	t.Run("no net change is omitted", func(t *testing.T) {
		d := accounting.BalanceDeltas(expense("a", 150), expense("a", 150))
		assert.Empty(t, d)
	})

	t.Run("create and delete", func(t *testing.T) {
		assert.Equal(t, "-150", accounting.BalanceDeltas(nil, expense("a", 150))["a"].String())
		assert.Equal(t, "150", accounting.BalanceDeltas(expense("a", 150), nil)["a"].String())
	})
}

func TestReplayBalances(t *testing.T) {
	accounts := []domain.Account{{AccountID: "a", OpeningBalance: decimal.NewFromInt(1000)}, {AccountID: "b"}}
	txns := []domain.Transaction{*expense("a", 150), *expense("a", 50), *expense("ghost", 10)}
	got := accounting.ReplayBalances(accounts, txns)
	assert.Equal(t, "800", got["a"].String())
	assert.Equal(t, "0", got["b"].String())
	assert.NotContains(t, got, "ghost")
}

func TestBudgetSpent(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := domain.Budget{CategoryID: "food", Period: domain.PeriodMonthly, StartDate: start}
	txns := []domain.Transaction{
		{CategoryID: "food", Amount: decimal.NewFromInt(10), Type: domain.TransactionExpense, Status: domain.TransactionCompleted, Date: start},
		{CategoryID: "food", Amount: decimal.NewFromInt(5), Type: domain.TransactionExpense, Status: domain.TransactionPending, Date: start.AddDate(0, 0, 3)},
		{CategoryID: "food", Amount: decimal.NewFromInt(7), Type: domain.TransactionExpense, Status: domain.TransactionCancelled, Date: start},
		{CategoryID: "food", Amount: decimal.NewFromInt(9), Type: domain.TransactionExpense, Status: domain.TransactionCompleted, Date: start.AddDate(0, 1, 0)},
		{CategoryID: "rent", Amount: decimal.NewFromInt(3), Type: domain.TransactionExpense, Status: domain.TransactionCompleted, Date: start},
		{CategoryID: "food", Amount: decimal.NewFromInt(4), Type: domain.TransactionIncome, Status: domain.TransactionCompleted, Date: start},
	}
	assert.Equal(t, "15", accounting.BudgetSpent(b, txns).String())
}
