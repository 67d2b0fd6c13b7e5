// Package memory is a LedgerStore kept entirely in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type entry struct {
	keys domain.IndexKeys
	data []byte
}

type recordKey struct {
	kind domain.EntityKind
	id   string
}

// Store keeps records in maps guarded by a RWMutex. Transactions buffer
// their writes and apply them under a single write lock on commit.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]entry
	// txMu serializes write transactions.
	txMu sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[recordKey]entry)}
}

var _ portsrepo.LedgerStore = (*Store)(nil)

func (s *Store) GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[recordKey{kind, id}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(e.data), nil
}

func (s *Store) ScanRecords(ctx context.Context, q portsrepo.ScanQuery) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scan(s.records, nil, q), nil
}

func (s *Store) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{kind, id}] = entry{keys: keys, data: clone(data)}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{kind, id}
	if _, ok := s.records[k]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

// WithTransaction runs fn against a buffered view and publishes its writes only if fn succeeds.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx portsrepo.RecordStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s, pending: make(map[recordKey]*entry)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range tx.pending {
		if e == nil {
			delete(s.records, k)
			continue
		}
		s.records[k] = *e
	}
	return nil
}

func (s *Store) Close() error { return nil }

// memTx overlays pending writes on the committed records. A nil entry marks a delete.
type memTx struct {
	store   *Store
	pending map[recordKey]*entry
}

func (t *memTx) GetRecord(ctx context.Context, kind domain.EntityKind, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := recordKey{kind, id}
	if e, ok := t.pending[k]; ok {
		if e == nil {
			return nil, apperrors.ErrNotFound
		}
		return clone(e.data), nil
	}
	return t.store.GetRecord(ctx, kind, id)
}

func (t *memTx) ScanRecords(ctx context.Context, q portsrepo.ScanQuery) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return scan(t.store.records, t.pending, q), nil
}

func (t *memTx) PutRecord(ctx context.Context, kind domain.EntityKind, id string, keys domain.IndexKeys, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.pending[recordKey{kind, id}] = &entry{keys: keys, data: clone(data)}
	return nil
}

func (t *memTx) DeleteRecord(ctx context.Context, kind domain.EntityKind, id string) error {
	if _, err := t.GetRecord(ctx, kind, id); err != nil {
		return err
	}
	t.pending[recordKey{kind, id}] = nil
	return nil
}

func scan(base map[recordKey]entry, overlay map[recordKey]*entry, q portsrepo.ScanQuery) [][]byte {
	type hit struct {
		id string
		e  entry
	}
	var hits []hit
	for k, e := range base {
		if k.kind != q.Kind {
			continue
		}
		if _, shadowed := overlay[k]; shadowed {
			continue
		}
		if matches(e.keys, q) {
			hits = append(hits, hit{k.id, e})
		}
	}
	for k, e := range overlay {
		if e == nil || k.kind != q.Kind {
			continue
		}
		if matches(e.keys, q) {
			hits = append(hits, hit{k.id, *e})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		di, dj := hits[i].e.keys.Date, hits[j].e.keys.Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return hits[i].id < hits[j].id
	})
	out := make([][]byte, len(hits))
	for i, h := range hits {
		out[i] = clone(h.e.data)
	}
	return out
}

func matches(keys domain.IndexKeys, q portsrepo.ScanQuery) bool {
	if q.AccountID != "" && keys.AccountID != q.AccountID {
		return false
	}
	if q.CategoryID != "" && keys.CategoryID != q.CategoryID {
		return false
	}
	if q.Type != "" && keys.Type != q.Type {
		return false
	}
	if q.From != nil && keys.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && !keys.Date.Before(*q.To) {
		return false
	}
	return true
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// String is used in log lines.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("memory store (%d records)", len(s.records))
}
