package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the recurrence length of a budget.
type BudgetPeriod string

const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

// IsValid reports whether p is a known period.
func (p BudgetPeriod) IsValid() bool {
	return p == PeriodWeekly || p == PeriodMonthly || p == PeriodYearly
}

// CalculatePeriodEnd returns the exclusive end of a period starting at start.
// Calendar arithmetic follows time.AddDate, so Jan 31 + 1 month normalizes to early March.
func CalculatePeriodEnd(start time.Time, period BudgetPeriod) time.Time {
	switch period {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Budget caps spending in one expense category over a window.
// Spent is a cache refreshed by the budget engine and is never authoritative.
type Budget struct {
	BudgetID   string          `json:"id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Period     BudgetPeriod    `json:"period"`
	StartDate  time.Time       `json:"startDate"`
	EndDate    *time.Time      `json:"endDate,omitempty"`
	Spent      decimal.Decimal `json:"spent"`
	IsActive   bool            `json:"isActive"`
	AuditFields
}

func (b Budget) RecordKind() EntityKind { return KindBudget }
func (b Budget) RecordID() string       { return b.BudgetID }

func (b Budget) IndexKeys() IndexKeys {
	return IndexKeys{CategoryID: b.CategoryID, Type: string(b.Period), Date: b.StartDate}
}

// EffectiveEnd is EndDate when set, otherwise the derived period end.
func (b Budget) EffectiveEnd() time.Time {
	if b.EndDate != nil {
		return *b.EndDate
	}
	return CalculatePeriodEnd(b.StartDate, b.Period)
}

// Contains reports whether t falls inside [StartDate, EffectiveEnd).
func (b Budget) Contains(t time.Time) bool {
	return !t.Before(b.StartDate) && t.Before(b.EffectiveEnd())
}

// Overlaps reports whether two budgets compete for the same spend.
// Windows are half-open, so a budget starting exactly at another's end does not overlap.
func (b Budget) Overlaps(other Budget) bool {
	if b.CategoryID != other.CategoryID || !b.IsActive || !other.IsActive {
		return false
	}
	return b.StartDate.Before(other.EffectiveEnd()) && b.EffectiveEnd().After(other.StartDate)
}

// NaturalKey identifies the budget across independently created ledgers.
func (b Budget) NaturalKey() string {
	return b.CategoryID + "|" + b.StartDate.UTC().Format(time.DateOnly) + "|" + string(b.Period)
}

// Utilization is Spent/Amount, zero when Amount is not positive.
func (b Budget) Utilization() decimal.Decimal {
	if !b.Amount.IsPositive() {
		return decimal.Zero
	}
	return b.Spent.Div(b.Amount)
}

// BudgetAlertLevel classifies how close a budget is to its limit.
type BudgetAlertLevel string

const (
	AlertWarning     BudgetAlertLevel = "warning"
	AlertApproaching BudgetAlertLevel = "approaching"
	AlertExceeded    BudgetAlertLevel = "exceeded"
)

// AlertThresholds are utilization ratios at which alerts fire.
type AlertThresholds struct {
	Warning     decimal.Decimal
	Approaching decimal.Decimal
	Exceeded    decimal.Decimal
}

// DefaultAlertThresholds returns 0.75 / 0.90 / 1.00.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Warning:     decimal.RequireFromString("0.75"),
		Approaching: decimal.RequireFromString("0.90"),
		Exceeded:    decimal.NewFromInt(1),
	}
}

// Classify returns the highest level crossed by utilization, or false when none is.
func (t AlertThresholds) Classify(utilization decimal.Decimal) (BudgetAlertLevel, bool) {
	switch {
	case utilization.GreaterThanOrEqual(t.Exceeded):
		return AlertExceeded, true
	case utilization.GreaterThanOrEqual(t.Approaching):
		return AlertApproaching, true
	case utilization.GreaterThanOrEqual(t.Warning):
		return AlertWarning, true
	}
	return "", false
}

// BudgetAlert is raised for a budget past one of its thresholds.
type BudgetAlert struct {
	BudgetID    string           `json:"budgetID"`
	BudgetName  string           `json:"budgetName"`
	CategoryID  string           `json:"category"`
	Level       BudgetAlertLevel `json:"level"`
	Utilization decimal.Decimal  `json:"utilization"`
	Spent       decimal.Decimal  `json:"spent"`
	Amount      decimal.Decimal  `json:"amount"`
}

// BudgetPerformance is a point-in-time projection of a budget's spend.
type BudgetPerformance struct {
	BudgetID       string          `json:"budgetID"`
	Spent          decimal.Decimal `json:"spent"`
	Amount         decimal.Decimal `json:"amount"`
	Remaining      decimal.Decimal `json:"remaining"`
	Utilization    decimal.Decimal `json:"utilization"`
	ElapsedDays    int             `json:"elapsedDays"`
	TotalDays      int             `json:"totalDays"`
	ProjectedSpend decimal.Decimal `json:"projectedSpend"`
	IsOnTrack      bool            `json:"isOnTrack"`
}

var onTrackTolerance = decimal.RequireFromString("1.10")

// NewBudgetPerformance projects spend at asOf assuming a constant daily rate.
func NewBudgetPerformance(b Budget, asOf time.Time) BudgetPerformance {
	end := b.EffectiveEnd()
	totalDays := wholeDays(b.StartDate, end)
	elapsed := wholeDays(b.StartDate, asOf)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > totalDays {
		elapsed = totalDays
	}

	projected := decimal.Zero
	if elapsed > 0 {
		// Multiply first so whole-number projections stay exact.
		projected = b.Spent.Mul(decimal.NewFromInt(int64(totalDays))).Div(decimal.NewFromInt(int64(elapsed)))
	}

	return BudgetPerformance{
		BudgetID:       b.BudgetID,
		Spent:          b.Spent,
		Amount:         b.Amount,
		Remaining:      b.Amount.Sub(b.Spent),
		Utilization:    b.Utilization(),
		ElapsedDays:    elapsed,
		TotalDays:      totalDays,
		ProjectedSpend: projected,
		IsOnTrack:      projected.LessThanOrEqual(b.Amount.Mul(onTrackTolerance)),
	}
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
