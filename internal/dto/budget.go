package dto

import (
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateBudgetRequest defines the data needed to create a budget.
type CreateBudgetRequest struct {
	Name       string              `json:"name" binding:"required,max=100"`
	CategoryID string              `json:"category" binding:"required"`
	Amount     decimal.Decimal     `json:"amount"`
	Period     domain.BudgetPeriod `json:"period" binding:"required,oneof=weekly monthly yearly"`
	StartDate  time.Time           `json:"startDate" binding:"required"`
	EndDate    *time.Time          `json:"endDate"`
}

// UpdateBudgetRequest is a partial patch; the category is immutable.
type UpdateBudgetRequest struct {
	Name      *string              `json:"name" binding:"omitempty,max=100"`
	Amount    *decimal.Decimal     `json:"amount"`
	Period    *domain.BudgetPeriod `json:"period" binding:"omitempty,oneof=weekly monthly yearly"`
	StartDate *time.Time           `json:"startDate"`
	EndDate   *time.Time           `json:"endDate"`
	IsActive  *bool                `json:"isActive"`
}

// BudgetResponse defines the data returned for a budget.
type BudgetResponse struct {
	BudgetID     string              `json:"id"`
	Name         string              `json:"name"`
	CategoryID   string              `json:"category"`
	Amount       decimal.Decimal     `json:"amount"`
	Period       domain.BudgetPeriod `json:"period"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      *time.Time          `json:"endDate,omitempty"`
	EffectiveEnd time.Time           `json:"effectiveEnd"`
	Spent        decimal.Decimal     `json:"spent"`
	IsActive     bool                `json:"isActive"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ToBudgetResponse converts a domain.Budget to its DTO.
func ToBudgetResponse(b *domain.Budget) BudgetResponse {
	return BudgetResponse{
		BudgetID:     b.BudgetID,
		Name:         b.Name,
		CategoryID:   b.CategoryID,
		Amount:       b.Amount,
		Period:       b.Period,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		EffectiveEnd: b.EffectiveEnd(),
		Spent:        b.Spent,
		IsActive:     b.IsActive,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// ListBudgetsResponse wraps the list of budgets.
type ListBudgetsResponse struct {
	Budgets []BudgetResponse `json:"budgets"`
}

// ToListBudgetResponse converts budgets to DTOs.
func ToListBudgetResponse(budgets []domain.Budget) ListBudgetsResponse {
	res := make([]BudgetResponse, len(budgets))
	for i := range budgets {
		res[i] = ToBudgetResponse(&budgets[i])
	}
	return ListBudgetsResponse{Budgets: res}
}

// BudgetAlertsParams controls alert evaluation.
type BudgetAlertsParams struct {
	Refresh bool `form:"refresh"`
}

// BudgetAlertsResponse lists the highest threshold crossed per budget.
type BudgetAlertsResponse struct {
	Alerts []domain.BudgetAlert `json:"alerts"`
}

// RefreshSpendingResponse reports how many budget caches were rewritten.
type RefreshSpendingResponse struct {
	Updated int `json:"updated"`
}
