package services

import (
	"context"
	"slices"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"golang.org/x/sync/semaphore"
)

// gateCapacity bounds the number of mutations admitted at once. Quiesce
// acquires all of it, which waits for in-flight mutations and holds new ones back.
const gateCapacity int64 = 1 << 16

// LedgerGate serializes mutations per account and lets the sync engine drain
// the ledger. It also remembers accounts fenced by a ConsistencyError.
type LedgerGate struct {
	gate *semaphore.Weighted

	mu       sync.Mutex
	accounts map[string]*semaphore.Weighted
	fenced   map[string]*apperrors.ConsistencyError
}

// NewLedgerGate creates an open gate.
func NewLedgerGate() *LedgerGate {
	return &LedgerGate{
		gate:     semaphore.NewWeighted(gateCapacity),
		accounts: make(map[string]*semaphore.Weighted),
		fenced:   make(map[string]*apperrors.ConsistencyError),
	}
}

// LockAccounts admits one mutation and takes the locks of the given accounts.
// Locks are taken in sorted order so two mutations touching the same pair of
// accounts cannot deadlock. With no ids only the gate is entered.
func (g *LedgerGate) LockAccounts(ctx context.Context, accountIDs ...string) (func(), error) {
	if err := g.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*semaphore.Weighted, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
		g.gate.Release(1)
	}
	for _, id := range ids {
		sem := g.accountLock(id)
		if err := sem.Acquire(ctx, 1); err != nil {
			release()
			return nil, err
		}
		held = append(held, sem)
	}
	return release, nil
}

// Quiesce waits for every in-flight mutation and blocks new ones until the
// returned func is called.
func (g *LedgerGate) Quiesce(ctx context.Context) (func(), error) {
	if err := g.gate.Acquire(ctx, gateCapacity); err != nil {
		return nil, err
	}
	return func() { g.gate.Release(gateCapacity) }, nil
}

func (g *LedgerGate) accountLock(id string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	sem, ok := g.accounts[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.accounts[id] = sem
	}
	return sem
}

// Fence blocks further writes to the account until Unfence.
func (g *LedgerGate) Fence(err *apperrors.ConsistencyError) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.fenced[err.AccountID]; !ok {
		g.fenced[err.AccountID] = err
	}
}

// Unfence lifts the fence on the account.
func (g *LedgerGate) Unfence(accountID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.fenced, accountID)
}

// IsFenced reports whether the account is fenced.
func (g *LedgerGate) IsFenced(accountID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.fenced[accountID]
	return ok
}

// CheckFenced returns the ConsistencyError that fenced the first fenced account among ids.
func (g *LedgerGate) CheckFenced(accountIDs ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range accountIDs {
		if err, ok := g.fenced[id]; ok {
			return err
		}
	}
	return nil
}
