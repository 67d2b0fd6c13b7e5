package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType classifies where the money is held.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
	AccountCash       AccountType = "cash"
)

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountInvestment, AccountCash:
		return true
	}
	return false
}

// Account represents a financial account.
// Balance is derived from OpeningBalance and the completed transactions on the
// account; only the balance engine writes it.
type Account struct {
	AccountID      string          `json:"id"`
	Name           string          `json:"name"`
	AccountType    AccountType     `json:"type"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Balance        decimal.Decimal `json:"balance"`
	CurrencyCode   string          `json:"currency"`
	IsActive       bool            `json:"isActive"`
	AuditFields
}

func (a Account) RecordKind() EntityKind { return KindAccount }
func (a Account) RecordID() string       { return a.AccountID }
func (a Account) IndexKeys() IndexKeys   { return IndexKeys{Type: string(a.AccountType)} }

// NaturalKey identifies the account across independently created ledgers.
func (a Account) NaturalKey() string {
	return strings.ToLower(strings.TrimSpace(a.Name))
}

// ReplayBalance recomputes the balance the account must have given its transaction log.
func ReplayBalance(opening decimal.Decimal, transactions []Transaction) decimal.Decimal {
	balance := opening
	for _, t := range transactions {
		balance = balance.Add(t.SignedEffect())
	}
	return balance
}
