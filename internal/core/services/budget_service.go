package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/SscSPs/money_sync_app/internal/utils/accounting"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// refreshConcurrency bounds the parallel spend scans of a full refresh.
const refreshConcurrency = 4

type budgetService struct {
	BaseService
	uow        portsrepo.UnitOfWork
	gate       *LedgerGate
	cache      *CategoryCache
	thresholds domain.AlertThresholds
	// mu makes the overlap check and the write one step.
	mu sync.Mutex
}

// BudgetServiceOption is a functional option for configuring the budget service
type BudgetServiceOption func(*budgetService)

// WithAlertThresholds overrides the default 0.75/0.90/1.00 alert levels.
func WithAlertThresholds(t domain.AlertThresholds) BudgetServiceOption {
	return func(s *budgetService) {
		s.thresholds = t
	}
}

// WithBudgetCategoryCache shares a category cache with other services.
func WithBudgetCategoryCache(cache *CategoryCache) BudgetServiceOption {
	return func(s *budgetService) {
		s.cache = cache
	}
}

// WithBudgetClock replaces the wall clock, for performance projections in tests.
func WithBudgetClock(clock func() time.Time) BudgetServiceOption {
	return func(s *budgetService) {
		s.clock = clock
	}
}

// NewBudgetService creates the budget tracking engine.
func NewBudgetService(uow portsrepo.UnitOfWork, gate *LedgerGate, options ...BudgetServiceOption) portssvc.BudgetSvcFacade {
	svc := &budgetService{uow: uow, gate: gate, thresholds: domain.DefaultAlertThresholds()}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.BudgetSvcFacade = (*budgetService)(nil)

func (s *budgetService) CreateBudget(ctx context.Context, req dto.CreateBudgetRequest) (*domain.Budget, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	budget := domain.Budget{
		BudgetID:   newID(),
		Name:       strings.TrimSpace(req.Name),
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Period:     req.Period,
		StartDate:  req.StartDate.UTC(),
		EndDate:    utcPtr(req.EndDate),
		IsActive:   true,
	}

	if err := s.write(ctx, budget, "create"); err != nil {
		return nil, err
	}
	created, err := s.GetBudgetByID(ctx, budget.BudgetID)
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Budget created",
		slog.String("budget_id", created.BudgetID),
		slog.String("category_id", created.CategoryID))
	return created, nil
}

func (s *budgetService) GetBudgetByID(ctx context.Context, budgetID string) (*domain.Budget, error) {
	budget, err := s.uow.Repositories().BudgetRepo.FindBudgetByID(ctx, budgetID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find budget", slog.String("budget_id", budgetID))
		}
		return nil, err
	}
	return budget, nil
}

func (s *budgetService) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	budgets, err := s.uow.Repositories().BudgetRepo.ListBudgets(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list budgets")
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	if budgets == nil {
		return []domain.Budget{}, nil
	}
	return budgets, nil
}

func (s *budgetService) UpdateBudget(ctx context.Context, budgetID string, req dto.UpdateBudgetRequest) (*domain.Budget, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	budget, err := s.GetBudgetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		budget.Name = strings.TrimSpace(*req.Name)
	}
	if req.Amount != nil {
		budget.Amount = *req.Amount
	}
	if req.Period != nil {
		budget.Period = *req.Period
	}
	if req.StartDate != nil {
		budget.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		budget.EndDate = utcPtr(req.EndDate)
	}
	if req.IsActive != nil {
		budget.IsActive = *req.IsActive
	}

	if err := s.write(ctx, *budget, "update"); err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Budget updated", slog.String("budget_id", budgetID))
	return s.GetBudgetByID(ctx, budgetID)
}

func (s *budgetService) DeactivateBudget(ctx context.Context, budgetID string) error {
	active := false
	_, err := s.UpdateBudget(ctx, budgetID, dto.UpdateBudgetRequest{IsActive: &active})
	return err
}

func (s *budgetService) DeleteBudget(ctx context.Context, budgetID string) error {
	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.uow.Repositories().BudgetRepo.DeleteBudget(ctx, budgetID); err != nil {
		s.LogFailure(ctx, err, "Failed to delete budget", slog.String("budget_id", budgetID))
		return err
	}
	s.LogInfo(ctx, "Budget deleted", slog.String("budget_id", budgetID))
	return nil
}

// write validates budget, rejects overlaps with other active budgets of the
// category and saves it with a freshly computed spent.
func (s *budgetService) write(ctx context.Context, budget domain.Budget, op string) error {
	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return err
	}
	defer release()
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		if err := s.validateBudget(ctx, repos, budget); err != nil {
			return err
		}
		overlap, err := findOverlap(ctx, repos, budget, budget.BudgetID)
		if err != nil {
			return err
		}
		if overlap != nil {
			return apperrors.NewValidationError("startDate", "window %s to %s overlaps active budget %q",
				budget.StartDate.Format(time.DateOnly), budget.EffectiveEnd().Format(time.DateOnly), overlap.Name)
		}

		spent, err := computeSpent(ctx, repos, budget)
		if err != nil {
			return err
		}
		budget.Spent = spent
		budget.Touch(s.Now())
		return repos.BudgetRepo.SaveBudget(ctx, budget)
	})
	if err != nil {
		s.LogFailure(ctx, err, "Failed to "+op+" budget", slog.String("budget_id", budget.BudgetID))
	}
	return err
}

func (s *budgetService) validateBudget(ctx context.Context, repos portsrepo.RepositoryProvider, b domain.Budget) error {
	if b.Name == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if !b.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if !b.Period.IsValid() {
		return apperrors.NewValidationError("period", "unknown budget period %q", b.Period)
	}
	if b.StartDate.IsZero() {
		return apperrors.NewValidationError("startDate", "is required")
	}
	if b.EndDate != nil && !b.EndDate.After(b.StartDate) {
		return apperrors.NewValidationError("endDate", "must be after the start date")
	}
	category, err := s.cache.Resolve(ctx, repos.CategoryRepo, "category", b.CategoryID)
	if err != nil {
		return err
	}
	if category.CategoryType != domain.CategoryExpense {
		return &apperrors.ReferentialError{Field: "category", Kind: "category", ID: b.CategoryID, Cause: "budgets can only track expense categories"}
	}
	return nil
}

// RefreshSpending scans spend for every selected budget concurrently and then
// writes back the budgets whose cache changed in one store transaction.
func (s *budgetService) RefreshSpending(ctx context.Context, budgetID string) (int, error) {
	repos := s.uow.Repositories()

	var budgets []domain.Budget
	if budgetID != "" {
		b, err := repos.BudgetRepo.FindBudgetByID(ctx, budgetID)
		if err != nil {
			return 0, err
		}
		budgets = []domain.Budget{*b}
	} else {
		all, err := repos.BudgetRepo.ListBudgets(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list budgets: %w", err)
		}
		budgets = all
	}

	spent := make([]decimal.Decimal, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i := range budgets {
		g.Go(func() error {
			v, err := computeSpent(gctx, repos, budgets[i])
			if err != nil {
				return err
			}
			spent[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.LogError(ctx, err, "Failed to compute budget spending")
		return 0, err
	}

	stale := make(map[string]decimal.Decimal)
	for i, b := range budgets {
		if !b.Spent.Equal(spent[i]) {
			stale[b.BudgetID] = spent[i]
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	updated := 0
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		for id, value := range stale {
			b, err := repos.BudgetRepo.FindBudgetByID(ctx, id)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			b.Spent = value
			b.Touch(s.Now())
			if err := repos.BudgetRepo.SaveBudget(ctx, *b); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to write refreshed budget spending")
		return 0, err
	}

	s.LogInfo(ctx, "Budget spending refreshed", slog.Int("updated", updated))
	return updated, nil
}

func (s *budgetService) FindOverlappingBudget(ctx context.Context, candidate domain.Budget, excludeID string) (*domain.Budget, error) {
	return findOverlap(ctx, s.uow.Repositories(), candidate, excludeID)
}

func (s *budgetService) CheckAlerts(ctx context.Context, refresh bool) ([]domain.BudgetAlert, error) {
	if refresh {
		if _, err := s.RefreshSpending(ctx, ""); err != nil {
			return nil, err
		}
	}
	budgets, err := s.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []domain.BudgetAlert{}
	for _, b := range budgets {
		if !b.IsActive {
			continue
		}
		utilization := b.Utilization()
		level, ok := s.thresholds.Classify(utilization)
		if !ok {
			continue
		}
		alerts = append(alerts, domain.BudgetAlert{
			BudgetID:    b.BudgetID,
			BudgetName:  b.Name,
			CategoryID:  b.CategoryID,
			Level:       level,
			Utilization: utilization,
			Spent:       b.Spent,
			Amount:      b.Amount,
		})
	}
	if len(alerts) > 0 {
		s.LogInfo(ctx, "Budget alerts raised", slog.Int("count", len(alerts)))
	}
	return alerts, nil
}

// GetPerformance projects from live spend rather than the cache.
func (s *budgetService) GetPerformance(ctx context.Context, budgetID string, asOf time.Time) (*domain.BudgetPerformance, error) {
	repos := s.uow.Repositories()
	budget, err := repos.BudgetRepo.FindBudgetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	spent, err := computeSpent(ctx, repos, *budget)
	if err != nil {
		return nil, err
	}
	budget.Spent = spent
	if asOf.IsZero() {
		asOf = s.Now()
	}
	perf := domain.NewBudgetPerformance(*budget, asOf)
	return &perf, nil
}

func findOverlap(ctx context.Context, repos portsrepo.RepositoryProvider, candidate domain.Budget, excludeID string) (*domain.Budget, error) {
	others, err := repos.BudgetRepo.ListBudgetsByCategory(ctx, candidate.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets for category: %w", err)
	}
	for i := range others {
		if others[i].BudgetID == excludeID {
			continue
		}
		if candidate.Overlaps(others[i]) {
			return &others[i], nil
		}
	}
	return nil, nil
}

func computeSpent(ctx context.Context, repos portsrepo.RepositoryProvider, b domain.Budget) (decimal.Decimal, error) {
	from, to := b.StartDate, b.EffectiveEnd()
	txns, err := repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{
		CategoryID: b.CategoryID,
		Type:       domain.TransactionExpense,
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list transactions for budget %s: %w", b.BudgetID, err)
	}
	return accounting.BudgetSpent(b, txns), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
