package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/utils"
)

const defaultCategoryColor = "#9e9e9e"

type categoryService struct {
	BaseService
	uow   portsrepo.UnitOfWork
	gate  *LedgerGate
	cache *CategoryCache
	mu    sync.Mutex
}

// NewCategoryService creates the category service. cache may be nil.
func NewCategoryService(uow portsrepo.UnitOfWork, gate *LedgerGate, cache *CategoryCache) portssvc.CategorySvcFacade {
	return &categoryService{uow: uow, gate: gate, cache: cache}
}

var _ portssvc.CategorySvcFacade = (*categoryService)(nil)

func (s *categoryService) CreateCategory(ctx context.Context, req dto.CreateCategoryRequest) (*domain.Category, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	category := domain.Category{
		CategoryID:   newID(),
		Name:         strings.TrimSpace(req.Name),
		CategoryType: req.CategoryType,
		Color:        req.Color,
	}
	if category.Name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if category.Color == "" {
		category.Color = defaultCategoryColor
	}

	if err := s.save(ctx, category); err != nil {
		s.LogFailure(ctx, err, "Failed to create category", slog.String("category_id", category.CategoryID))
		return nil, err
	}
	s.LogInfo(ctx, "Category created", slog.String("category_id", category.CategoryID))
	return &category, nil
}

func (s *categoryService) GetCategoryByID(ctx context.Context, categoryID string) (*domain.Category, error) {
	category, err := s.uow.Repositories().CategoryRepo.FindCategoryByID(ctx, categoryID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find category", slog.String("category_id", categoryID))
		}
		return nil, err
	}
	return category, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.uow.Repositories().CategoryRepo.ListCategories(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list categories")
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		return []domain.Category{}, nil
	}
	return categories, nil
}

// UpdateCategory changes name and color. The type cannot change because
// existing transactions and budgets were validated against it.
func (s *categoryService) UpdateCategory(ctx context.Context, categoryID string, req dto.UpdateCategoryRequest) (*domain.Category, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	category, err := s.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		category.Name = strings.TrimSpace(*req.Name)
		if category.Name == "" {
			return nil, apperrors.NewValidationError("name", "is required")
		}
	}
	if req.Color != nil {
		category.Color = *req.Color
	}

	if err := s.save(ctx, *category); err != nil {
		s.LogFailure(ctx, err, "Failed to update category", slog.String("category_id", categoryID))
		return nil, err
	}
	s.LogInfo(ctx, "Category updated", slog.String("category_id", categoryID))
	return category, nil
}

// DeleteCategory drains the ledger first so no transaction can be validated
// against the category while it is being removed.
func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	release, err := s.gate.Quiesce(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		if _, err := repos.CategoryRepo.FindCategoryByID(ctx, categoryID); err != nil {
			return err
		}
		txns, err := repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{CategoryID: categoryID})
		if err != nil {
			return err
		}
		if len(txns) > 0 {
			return fmt.Errorf("%w: category %s is used by %d transactions", apperrors.ErrConflict, categoryID, len(txns))
		}
		budgets, err := repos.BudgetRepo.ListBudgetsByCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		if len(budgets) > 0 {
			return fmt.Errorf("%w: category %s is used by %d budgets", apperrors.ErrConflict, categoryID, len(budgets))
		}
		return repos.CategoryRepo.DeleteCategory(ctx, categoryID)
	})
	s.cache.Remove(categoryID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to delete category", slog.String("category_id", categoryID))
		return err
	}
	s.LogInfo(ctx, "Category deleted", slog.String("category_id", categoryID))
	return nil
}

// EnsureDefaultCategories seeds the defaults when the ledger has no categories.
func (s *categoryService) EnsureDefaultCategories(ctx context.Context) error {
	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		existing, err := repos.CategoryRepo.ListCategories(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, c := range domain.DefaultCategories() {
			if err := repos.CategoryRepo.SaveCategory(ctx, c); err != nil {
				return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
			}
		}
		s.LogInfo(ctx, "Seeded default categories", slog.Int("count", len(domain.DefaultCategories())))
		return nil
	})
}

// save rejects a second category with the same name and type.
func (s *categoryService) save(ctx context.Context, category domain.Category) error {
	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return err
	}
	defer release()
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		existing, err := repos.CategoryRepo.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.CategoryID != category.CategoryID && other.NaturalKey() == category.NaturalKey() {
				return fmt.Errorf("%w: a %s category named %q already exists", apperrors.ErrDuplicate, other.CategoryType, other.Name)
			}
		}
		return repos.CategoryRepo.SaveCategory(ctx, category)
	})
	if err != nil {
		return err
	}
	s.cache.Add(category)
	return nil
}
