package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to domain.TransactionStatus
		want     bool
	}{
		{domain.TransactionPending, domain.TransactionCompleted, true},
		{domain.TransactionPending, domain.TransactionFailed, true},
		{domain.TransactionPending, domain.TransactionCancelled, true},
		{domain.TransactionCompleted, domain.TransactionCancelled, true},
		{domain.TransactionCompleted, domain.TransactionCompleted, true},
		{domain.TransactionCompleted, domain.TransactionPending, false},
		{domain.TransactionFailed, domain.TransactionCompleted, false},
		{domain.TransactionCancelled, domain.TransactionPending, false},
		{domain.TransactionCancelled, domain.TransactionCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTransaction_SignedEffect(t *testing.T) {
	amount := decimal.NewFromInt(150)
	tests := []struct {
		name string
		txn  domain.Transaction
		want decimal.Decimal
	}{
		{"completed income", domain.Transaction{Amount: amount, Type: domain.TransactionIncome, Status: domain.TransactionCompleted}, amount},
		{"completed expense", domain.Transaction{Amount: amount, Type: domain.TransactionExpense, Status: domain.TransactionCompleted}, amount.Neg()},
		{"completed transfer", domain.Transaction{Amount: amount, Type: domain.TransactionTransfer, Status: domain.TransactionCompleted}, amount.Neg()},
		{"pending expense", domain.Transaction{Amount: amount, Type: domain.TransactionExpense, Status: domain.TransactionPending}, decimal.Zero},
		{"cancelled income", domain.Transaction{Amount: amount, Type: domain.TransactionIncome, Status: domain.TransactionCancelled}, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(tt.txn.SignedEffect()), "got %s", tt.txn.SignedEffect())
		})
	}
}

func TestReplayBalance(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: decimal.NewFromInt(150), Type: domain.TransactionExpense, Status: domain.TransactionCompleted},
		{Amount: decimal.NewFromInt(50), Type: domain.TransactionExpense, Status: domain.TransactionCompleted},
		{Amount: decimal.NewFromInt(20), Type: domain.TransactionIncome, Status: domain.TransactionPending},
	}
	got := domain.ReplayBalance(decimal.NewFromInt(1000), txns)
	assert.Equal(t, "800", got.String())
}

func TestTransactionFilter_Matches(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	txn := domain.Transaction{AccountID: "a1", CategoryID: "c1", Type: domain.TransactionExpense, Date: jan, Status: domain.TransactionCompleted}

	assert.True(t, domain.TransactionFilter{}.Matches(txn))
	assert.True(t, domain.TransactionFilter{AccountID: "a1", From: &jan, To: &feb}.Matches(txn))
	assert.False(t, domain.TransactionFilter{AccountID: "a2"}.Matches(txn))
	assert.False(t, domain.TransactionFilter{To: &jan}.Matches(txn), "upper bound is exclusive")
	assert.False(t, domain.TransactionFilter{Status: domain.TransactionPending}.Matches(txn))
}

func TestTransaction_NaturalKeyUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	txn := domain.Transaction{Date: time.Date(2024, 3, 2, 2, 0, 0, 0, loc), Description: " Coffee ", AccountID: "a1"}
	assert.Equal(t, "2024-03-01|Coffee|a1", txn.NaturalKey())
}
