package ledger

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type budgetRepository struct {
	records recordRepository[domain.Budget]
}

func newBudgetRepository(store portsrepo.RecordStore) *budgetRepository {
	return &budgetRepository{records: recordRepository[domain.Budget]{store: store, kind: domain.KindBudget}}
}

var _ portsrepo.BudgetRepositoryFacade = (*budgetRepository)(nil)

func (r *budgetRepository) FindBudgetByID(ctx context.Context, id string) (*domain.Budget, error) {
	return r.records.get(ctx, id)
}

func (r *budgetRepository) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	return r.records.scan(ctx, portsrepo.ScanQuery{})
}

func (r *budgetRepository) ListBudgetsByCategory(ctx context.Context, categoryID string) ([]domain.Budget, error) {
	return r.records.scan(ctx, portsrepo.ScanQuery{CategoryID: categoryID})
}

func (r *budgetRepository) SaveBudget(ctx context.Context, budget domain.Budget) error {
	return r.records.put(ctx, budget)
}

func (r *budgetRepository) DeleteBudget(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}
