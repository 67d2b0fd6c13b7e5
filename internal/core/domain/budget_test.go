package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculatePeriodEnd(t *testing.T) {
	start := day(2024, 1, 1)
	assert.Equal(t, day(2024, 1, 8), domain.CalculatePeriodEnd(start, domain.PeriodWeekly))
	assert.Equal(t, day(2024, 2, 1), domain.CalculatePeriodEnd(start, domain.PeriodMonthly))
	assert.Equal(t, day(2025, 1, 1), domain.CalculatePeriodEnd(start, domain.PeriodYearly))
}

func TestBudget_Overlaps(t *testing.T) {
	base := domain.Budget{CategoryID: "groceries", Period: domain.PeriodMonthly, StartDate: day(2024, 1, 1), IsActive: true}

	tests := []struct {
		name  string
		other domain.Budget
		want  bool
	}{
		{"mid-period start", domain.Budget{CategoryID: "groceries", Period: domain.PeriodMonthly, StartDate: day(2024, 1, 15), IsActive: true}, true},
		{"starts at end", domain.Budget{CategoryID: "groceries", Period: domain.PeriodMonthly, StartDate: day(2024, 2, 1), IsActive: true}, false},
		{"other category", domain.Budget{CategoryID: "transport", Period: domain.PeriodMonthly, StartDate: day(2024, 1, 15), IsActive: true}, false},
		{"inactive", domain.Budget{CategoryID: "groceries", Period: domain.PeriodMonthly, StartDate: day(2024, 1, 15)}, false},
		{"explicit end before start", func() domain.Budget {
			end := day(2024, 1, 1)
			return domain.Budget{CategoryID: "groceries", Period: domain.PeriodYearly, StartDate: day(2023, 12, 1), EndDate: &end, IsActive: true}
		}(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestBudget_Contains(t *testing.T) {
	b := domain.Budget{Period: domain.PeriodMonthly, StartDate: day(2024, 1, 1)}
	assert.True(t, b.Contains(day(2024, 1, 1)))
	assert.True(t, b.Contains(day(2024, 1, 31)))
	assert.False(t, b.Contains(day(2024, 2, 1)))
	assert.False(t, b.Contains(day(2023, 12, 31)))
}

func TestAlertThresholds_ClassifyReturnsHighestLevel(t *testing.T) {
	th := domain.DefaultAlertThresholds()
	tests := []struct {
		util string
		want domain.BudgetAlertLevel
		ok   bool
	}{
		{"0.5", "", false},
		{"0.75", domain.AlertWarning, true},
		{"0.95", domain.AlertApproaching, true},
		{"1", domain.AlertExceeded, true},
		{"1.4", domain.AlertExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.util, func(t *testing.T) {
			level, ok := th.Classify(decimal.RequireFromString(tt.util))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestNewBudgetPerformance(t *testing.T) {
	b := domain.Budget{
		BudgetID:  "b1",
		Amount:    decimal.NewFromInt(300),
		Period:    domain.PeriodWeekly,
		StartDate: day(2024, 1, 1),
		Spent:     decimal.NewFromInt(100),
	}

	t.Run("projects linearly", func(t *testing.T) {
		perf := domain.NewBudgetPerformance(b, day(2024, 1, 3))
		assert.Equal(t, 7, perf.TotalDays)
		assert.Equal(t, 2, perf.ElapsedDays)
		assert.Equal(t, "350", perf.ProjectedSpend.String())
		assert.False(t, perf.IsOnTrack)
		assert.Equal(t, "200", perf.Remaining.String())
	})

	t.Run("zero elapsed days", func(t *testing.T) {
		perf := domain.NewBudgetPerformance(b, day(2023, 12, 25))
		assert.Equal(t, 0, perf.ElapsedDays)
		assert.True(t, perf.ProjectedSpend.IsZero())
		assert.True(t, perf.IsOnTrack)
	})

	t.Run("clamped after end", func(t *testing.T) {
		perf := domain.NewBudgetPerformance(b, day(2024, 3, 1))
		assert.Equal(t, 7, perf.ElapsedDays)
		assert.Equal(t, "100", perf.ProjectedSpend.String())
		assert.True(t, perf.IsOnTrack)
	})

	t.Run("on track at the tolerance boundary", func(t *testing.T) {
		monthly := domain.Budget{
			Amount:    decimal.NewFromInt(100),
			Period:    domain.PeriodMonthly,
			StartDate: day(2024, 4, 1),
			Spent:     decimal.NewFromInt(11),
		}
		perf := domain.NewBudgetPerformance(monthly, day(2024, 4, 4))
		assert.Equal(t, 3, perf.ElapsedDays)
		assert.Equal(t, 30, perf.TotalDays)
		assert.Equal(t, "110", perf.ProjectedSpend.String())
		assert.True(t, perf.IsOnTrack, "110 is within 100 x 1.10")
	})
}
