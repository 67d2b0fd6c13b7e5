package dto

import (
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest defines the data needed to create a new account.
type CreateAccountRequest struct {
	Name           string             `json:"name" binding:"required,max=100"`
	AccountType    domain.AccountType `json:"type" binding:"required,oneof=checking savings credit investment cash"`
	CurrencyCode   string             `json:"currency" binding:"required,len=3"`
	OpeningBalance decimal.Decimal    `json:"openingBalance"`
}

// UpdateAccountRequest defines the data allowed for updating an account.
// Use pointers to distinguish between zero-value updates and fields not provided.
// Balance is accepted only so that an attempt to set it can be rejected explicitly.
type UpdateAccountRequest struct {
	Name         *string             `json:"name" binding:"omitempty,max=100"`
	AccountType  *domain.AccountType `json:"type" binding:"omitempty,oneof=checking savings credit investment cash"`
	CurrencyCode *string             `json:"currency" binding:"omitempty,len=3"`
	IsActive     *bool               `json:"isActive"`
	Balance      *decimal.Decimal    `json:"balance,omitempty" swaggerignore:"true"`
}

// AdjustOpeningBalanceRequest sets a new opening balance; the difference is applied to the balance too.
type AdjustOpeningBalanceRequest struct {
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	AccountID      string             `json:"id"`
	Name           string             `json:"name"`
	AccountType    domain.AccountType `json:"type"`
	OpeningBalance decimal.Decimal    `json:"openingBalance"`
	Balance        decimal.Decimal    `json:"balance"`
	CurrencyCode   string             `json:"currency"`
	IsActive       bool               `json:"isActive"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:      acc.AccountID,
		Name:           acc.Name,
		AccountType:    acc.AccountType,
		OpeningBalance: acc.OpeningBalance,
		Balance:        acc.Balance,
		CurrencyCode:   acc.CurrencyCode,
		IsActive:       acc.IsActive,
		CreatedAt:      acc.CreatedAt,
		UpdatedAt:      acc.UpdatedAt,
	}
}

// ToListAccountResponse converts a slice of domain.Account to a slice of AccountResponse DTOs
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i := range accounts {
		res[i] = ToAccountResponse(&accounts[i])
	}
	return res
}

// ListAccountsResponse wraps the list of accounts.
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// AccountVerificationResponse compares the stored balance with the replayed one.
type AccountVerificationResponse struct {
	AccountID       string          `json:"accountID"`
	StoredBalance   decimal.Decimal `json:"storedBalance"`
	ReplayedBalance decimal.Decimal `json:"replayedBalance"`
	Drift           decimal.Decimal `json:"drift"`
	Consistent      bool            `json:"consistent"`
	Fenced          bool            `json:"fenced"`
}
