package ledger

import (
	"context"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
)

type categoryRepository struct {
	records recordRepository[domain.Category]
}

func newCategoryRepository(store portsrepo.RecordStore) *categoryRepository {
	return &categoryRepository{records: recordRepository[domain.Category]{store: store, kind: domain.KindCategory}}
}

var _ portsrepo.CategoryRepositoryFacade = (*categoryRepository)(nil)

func (r *categoryRepository) FindCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	return r.records.get(ctx, id)
}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return r.records.scan(ctx, portsrepo.ScanQuery{})
}

func (r *categoryRepository) SaveCategory(ctx context.Context, category domain.Category) error {
	return r.records.put(ctx, category)
}

func (r *categoryRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}
