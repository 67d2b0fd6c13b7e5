// Package accounting holds the balance and spend arithmetic shared by the
// engines and the sync merge.
package accounting

import (
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BalanceDeltas returns the per-account change needed to move from original to
// updated: the original effect is reverted and the updated effect applied.
// Either side may be nil (create or delete). Accounts with a zero net change are omitted.
func BalanceDeltas(original, updated *domain.Transaction) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal, 2)
	if original != nil {
		deltas[original.AccountID] = deltas[original.AccountID].Sub(original.SignedEffect())
	}
	if updated != nil {
		deltas[updated.AccountID] = deltas[updated.AccountID].Add(updated.SignedEffect())
	}
	for id, d := range deltas {
		if d.IsZero() {
			delete(deltas, id)
		}
	}
	return deltas
}

// ReplayBalances recomputes every account balance from its opening balance and
// the completed transactions. Transactions on unknown accounts are ignored.
func ReplayBalances(accounts []domain.Account, transactions []domain.Transaction) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.AccountID] = a.OpeningBalance
	}
	for _, t := range transactions {
		if b, ok := balances[t.AccountID]; ok {
			balances[t.AccountID] = b.Add(t.SignedEffect())
		}
	}
	return balances
}

// BudgetSpent sums the budgeted spend of transactions inside b's window.
func BudgetSpent(b domain.Budget, transactions []domain.Transaction) decimal.Decimal {
	spent := decimal.Zero
	for _, t := range transactions {
		if t.CategoryID == b.CategoryID && t.CountsTowardsSpend() && b.Contains(t.Date) {
			spent = spent.Add(t.Amount)
		}
	}
	return spent
}
