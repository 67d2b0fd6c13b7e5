package ledger

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type transactionRepository struct {
	records recordRepository[domain.Transaction]
}

func newTransactionRepository(store portsrepo.RecordStore) *transactionRepository {
	return &transactionRepository{records: recordRepository[domain.Transaction]{store: store, kind: domain.KindTransaction}}
}

var _ portsrepo.TransactionRepositoryFacade = (*transactionRepository)(nil)

func (r *transactionRepository) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.records.get(ctx, id)
}

// ListTransactions pushes the indexed criteria down to the store and applies status in memory.
func (r *transactionRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	txns, err := r.records.scan(ctx, portsrepo.ScanQuery{
		AccountID:  filter.AccountID,
		CategoryID: filter.CategoryID,
		Type:       string(filter.Type),
		From:       filter.From,
		To:         filter.To,
	})
	if err != nil {
		return nil, err
	}
	out := txns[:0]
	for _, t := range txns {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *transactionRepository) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	return r.records.put(ctx, txn)
}

func (r *transactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}
