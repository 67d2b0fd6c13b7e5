package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/utils/accounting"
	"github.com/google/uuid"
)

// conflictNamespace makes conflict ids a stable function of type and key, so
// re-running a merge that yields the same conflicts does not duplicate them.
var conflictNamespace = uuid.MustParse("6f1c2b8e-3d5a-4c1e-9a47-2f0b7d9e8c13")

// mergePlan is the outcome of comparing two snapshots.
type mergePlan struct {
	union     domain.Snapshot
	conflicts []domain.Conflict
	stats     domain.MergeStats
}

// mergeKind tells mergeRecords how to match and compare one entity kind.
type mergeKind[T any] struct {
	// conflictType is empty for kinds where the remote always wins.
	conflictType domain.ConflictType
	id           func(T) string
	withID       func(T, string) T
	key          func(T) string
	same         func(local, remote T) bool
}

type mergeInput struct {
	decisions map[string]domain.ResolutionSide
	force     bool
	now       time.Time
}

// refMap translates account and category ids between the local id space and
// the union's. Paired records adopt the remote id, so only key-matched pairs
// with different ids appear here.
type refMap struct {
	accounts   map[string]string
	categories map[string]string
}

func (m refMap) transaction(t domain.Transaction) domain.Transaction {
	t.AccountID = remap(m.accounts, t.AccountID)
	t.CategoryID = remap(m.categories, t.CategoryID)
	return t
}

func (m refMap) budget(b domain.Budget) domain.Budget {
	b.CategoryID = remap(m.categories, b.CategoryID)
	return b
}

func (m refMap) inverse() refMap {
	return refMap{accounts: invert(m.accounts), categories: invert(m.categories)}
}

// planMerge builds the union of local and remote. Records are paired by id
// first and by natural key second, and a pair takes the remote id so that
// devices converge on one id per record. Local references to renamed accounts
// and categories are rewritten before transactions and budgets are compared.
// Differing pairs become conflicts unless a recorded decision or force settles
// them; identical pairs take the remote copy.
func planMerge(local, remote domain.Snapshot, in mergeInput) (mergePlan, error) {
	var plan mergePlan

	categories, err := mergeRecords(categoryMerge, local.Categories, remote.Categories, in, &plan.stats, nil)
	if err != nil {
		return plan, err
	}
	accounts, err := mergeRecords(accountMerge, local.Accounts, remote.Accounts, in, &plan.stats, nil)
	if err != nil {
		return plan, err
	}
	refs := refMap{accounts: accounts.renamed, categories: categories.renamed}
	back := refs.inverse()

	localTxns := make([]domain.Transaction, len(local.Transactions))
	for i, t := range local.Transactions {
		localTxns[i] = refs.transaction(t)
	}
	transactions, err := mergeRecords(transactionMerge, localTxns, remote.Transactions, in, &plan.stats, back.transaction)
	if err != nil {
		return plan, err
	}

	localBudgets := make([]domain.Budget, len(local.Budgets))
	for i, b := range local.Budgets {
		localBudgets[i] = refs.budget(b)
	}
	budgets, err := mergeRecords(budgetMerge, localBudgets, remote.Budgets, in, &plan.stats, back.budget)
	if err != nil {
		return plan, err
	}

	for _, r := range []mergeResult{categories.mergeResult, accounts.mergeResult, transactions.mergeResult, budgets.mergeResult} {
		plan.conflicts = append(plan.conflicts, r.conflicts...)
	}
	plan.union = domain.Snapshot{
		Transactions: transactions.union,
		Accounts:     accounts.union,
		Categories:   categories.union,
		Budgets:      budgets.union,
	}
	deriveCaches(&plan.union)
	plan.union.Normalize()
	return plan, nil
}

// deriveCaches recomputes balances and budget spend from the snapshot's own log.
func deriveCaches(s *domain.Snapshot) {
	balances := accounting.ReplayBalances(s.Accounts, s.Transactions)
	for i := range s.Accounts {
		s.Accounts[i].Balance = balances[s.Accounts[i].AccountID]
	}
	for i := range s.Budgets {
		s.Budgets[i].Spent = accounting.BudgetSpent(s.Budgets[i], s.Transactions)
	}
}

type mergeResult struct {
	// renamed maps local ids to the remote ids their records adopted.
	renamed   map[string]string
	conflicts []domain.Conflict
}

type mergedRecords[T any] struct {
	mergeResult
	union []T
}

// mergeRecords merges one entity kind. local must already use union ids for
// its references; localize maps a union-space record back to local ids so
// conflict payloads can be applied to the local store.
func mergeRecords[T any](k mergeKind[T], local, remote []T, in mergeInput, stats *domain.MergeStats, localize func(T) T) (mergedRecords[T], error) {
	out := mergedRecords[T]{union: append([]T(nil), local...)}
	out.renamed = make(map[string]string)
	if localize == nil {
		localize = func(v T) T { return v }
	}

	used := make([]bool, len(local))
	byID := make(map[string]int, len(local))
	byKey := make(map[string][]int, len(local))
	for i, l := range local {
		byID[k.id(l)] = i
		byKey[k.key(l)] = append(byKey[k.key(l)], i)
	}

	for _, r := range remote {
		li := -1
		if i, ok := byID[k.id(r)]; ok && !used[i] {
			li = i
		} else {
			for _, i := range byKey[k.key(r)] {
				if !used[i] {
					li = i
					break
				}
			}
		}

		// A remote-only id can never clash with a kept local id: a local record
		// with that id would have been paired with it above.
		if li < 0 {
			out.union = append(out.union, r)
			stats.Added++
			continue
		}

		used[li] = true
		l := local[li]
		if k.id(l) != k.id(r) {
			out.renamed[k.id(l)] = k.id(r)
		}
		if k.same(l, r) {
			out.union[li] = r
			stats.Unchanged++
			continue
		}

		key := k.key(l)
		decision := in.decisions[string(k.conflictType)+"|"+key]
		switch {
		case k.conflictType == "" || in.force || decision == domain.ResolveCloud:
			out.union[li] = r
			stats.Updated++
		case decision == domain.ResolveLocal:
			out.union[li] = k.withID(l, k.id(r))
			stats.Unchanged++
		default:
			out.union[li] = k.withID(l, k.id(r))
			c, err := newConflict(k.conflictType, key, localize(l), localize(k.withID(r, k.id(l))), in.now)
			if err != nil {
				return out, err
			}
			out.conflicts = append(out.conflicts, c)
		}
	}
	return out, nil
}

func newConflict(t domain.ConflictType, key string, local, remote any, now time.Time) (domain.Conflict, error) {
	localData, err := json.Marshal(local)
	if err != nil {
		return domain.Conflict{}, fmt.Errorf("failed to encode local %s: %w", t, err)
	}
	cloudData, err := json.Marshal(remote)
	if err != nil {
		return domain.Conflict{}, fmt.Errorf("failed to encode cloud %s: %w", t, err)
	}
	return domain.Conflict{
		ConflictID:   uuid.NewSHA1(conflictNamespace, []byte(string(t)+"|"+key)).String(),
		Type:         t,
		Key:          key,
		LocalData:    localData,
		CloudData:    cloudData,
		ConflictDate: now,
	}, nil
}

func remap(ids map[string]string, id string) string {
	if mapped, ok := ids[id]; ok {
		return mapped
	}
	return id
}

func invert(ids map[string]string) map[string]string {
	out := make(map[string]string, len(ids))
	for from, to := range ids {
		out[to] = from
	}
	return out
}

var categoryMerge = mergeKind[domain.Category]{
	conflictType: domain.ConflictCategory,
	id:           func(c domain.Category) string { return c.CategoryID },
	withID:       func(c domain.Category, id string) domain.Category { c.CategoryID = id; return c },
	key:          domain.Category.NaturalKey,
	same: func(l, r domain.Category) bool {
		return l.Name == r.Name && l.CategoryType == r.CategoryType && l.Color == r.Color
	},
}

var accountMerge = mergeKind[domain.Account]{
	conflictType: domain.ConflictAccount,
	id:           func(a domain.Account) string { return a.AccountID },
	withID:       func(a domain.Account, id string) domain.Account { a.AccountID = id; return a },
	key:          domain.Account.NaturalKey,
	same: func(l, r domain.Account) bool {
		return l.Name == r.Name &&
			l.AccountType == r.AccountType &&
			l.OpeningBalance.Equal(r.OpeningBalance) &&
			l.CurrencyCode == r.CurrencyCode &&
			l.IsActive == r.IsActive
	},
}

var transactionMerge = mergeKind[domain.Transaction]{
	conflictType: domain.ConflictTransaction,
	id:           func(t domain.Transaction) string { return t.TransactionID },
	withID:       func(t domain.Transaction, id string) domain.Transaction { t.TransactionID = id; return t },
	key:          domain.Transaction.NaturalKey,
	same: func(l, r domain.Transaction) bool {
		return l.Amount.Equal(r.Amount) &&
			l.Type == r.Type &&
			l.CategoryID == r.CategoryID &&
			l.AccountID == r.AccountID &&
			l.Date.Equal(r.Date) &&
			l.Description == r.Description &&
			l.CurrencyCode == r.CurrencyCode &&
			l.Status == r.Status
	},
}

var budgetMerge = mergeKind[domain.Budget]{
	id:     func(b domain.Budget) string { return b.BudgetID },
	withID: func(b domain.Budget, id string) domain.Budget { b.BudgetID = id; return b },
	key:    domain.Budget.NaturalKey,
	same: func(l, r domain.Budget) bool {
		return l.Name == r.Name &&
			l.CategoryID == r.CategoryID &&
			l.Amount.Equal(r.Amount) &&
			l.Period == r.Period &&
			l.StartDate.Equal(r.StartDate) &&
			equalTimePtr(l.EndDate, r.EndDate) &&
			l.IsActive == r.IsActive
	},
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
