package services

import (
	"context"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
)

// BudgetReaderSvc defines read operations for budget data
type BudgetReaderSvc interface {
	GetBudgetByID(ctx context.Context, budgetID string) (*domain.Budget, error)
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
}

// BudgetWriterSvc defines write operations for budget data.
// Create and update reject windows that overlap another active budget of the category.
type BudgetWriterSvc interface {
	CreateBudget(ctx context.Context, req dto.CreateBudgetRequest) (*domain.Budget, error)
	UpdateBudget(ctx context.Context, budgetID string, req dto.UpdateBudgetRequest) (*domain.Budget, error)
	DeactivateBudget(ctx context.Context, budgetID string) error
	DeleteBudget(ctx context.Context, budgetID string) error
}

// BudgetTrackingSvc maintains and reports on budget spend.
type BudgetTrackingSvc interface {
	// RefreshSpending recomputes the spent cache of one budget, or of every budget
	// when budgetID is empty, and returns how many records changed.
	RefreshSpending(ctx context.Context, budgetID string) (int, error)
	// FindOverlappingBudget returns the first active budget that overlaps candidate, or nil.
	FindOverlappingBudget(ctx context.Context, candidate domain.Budget, excludeID string) (*domain.Budget, error)
	// CheckAlerts emits at most one alert per active budget: the highest threshold crossed.
	CheckAlerts(ctx context.Context, refresh bool) ([]domain.BudgetAlert, error)
	GetPerformance(ctx context.Context, budgetID string, asOf time.Time) (*domain.BudgetPerformance, error)
}

// BudgetSvcFacade combines all budget-related service interfaces
type BudgetSvcFacade interface {
	BudgetReaderSvc
	BudgetWriterSvc
	BudgetTrackingSvc
}
