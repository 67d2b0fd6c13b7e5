package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates the direction of a single-leg transaction.
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer" // outgoing leg only
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionTransfer:
		return true
	}
	return false
}

// TransactionStatus is the processing state of a transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed, TransactionCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Staying in the same status is always allowed so transitions are idempotent.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TransactionPending:
		return next == TransactionCompleted || next == TransactionFailed || next == TransactionCancelled
	case TransactionCompleted:
		return next == TransactionCancelled
	}
	return false
}

// Transaction is a single income, expense or transfer record against one account.
type Transaction struct {
	TransactionID string            `json:"id"`
	Amount        decimal.Decimal   `json:"amount"`
	Type          TransactionType   `json:"type"`
	CategoryID    string            `json:"category"`
	AccountID     string            `json:"account"`
	Date          time.Time         `json:"date"`
	Description   string            `json:"description"`
	CurrencyCode  string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	AuditFields
}

func (t Transaction) RecordKind() EntityKind { return KindTransaction }
func (t Transaction) RecordID() string       { return t.TransactionID }

func (t Transaction) IndexKeys() IndexKeys {
	return IndexKeys{AccountID: t.AccountID, CategoryID: t.CategoryID, Type: string(t.Type), Date: t.Date}
}

// SignedAmount is +amount for income and -amount otherwise, regardless of status.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// SignedEffect is the delta this transaction contributes to its account balance.
// Only completed transactions carry an effect.
func (t Transaction) SignedEffect() decimal.Decimal {
	if t.Status != TransactionCompleted {
		return decimal.Zero
	}
	return t.SignedAmount()
}

// NaturalKey identifies the transaction across independently created ledgers.
func (t Transaction) NaturalKey() string {
	return strings.Join([]string{t.Date.UTC().Format(time.DateOnly), strings.TrimSpace(t.Description), t.AccountID}, "|")
}

// CountsTowardsSpend reports whether the transaction is budgeted spend.
func (t Transaction) CountsTowardsSpend() bool {
	return t.Type == TransactionExpense && (t.Status == TransactionPending || t.Status == TransactionCompleted)
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	AccountID  string
	CategoryID string
	Type       TransactionType
	From       *time.Time // inclusive
	To         *time.Time // exclusive
	Status     TransactionStatus
}

// Matches reports whether t passes every non-empty criterion.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Date.Before(*f.To) {
		return false
	}
	return true
}
