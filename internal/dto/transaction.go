package dto

import (
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest defines the data needed to record a transaction.
// Status defaults to completed; a pending transaction is completed by the status worker.
type CreateTransactionRequest struct {
	Amount       decimal.Decimal          `json:"amount"`
	Type         domain.TransactionType   `json:"type" binding:"required,oneof=income expense transfer"`
	CategoryID   string                   `json:"category" binding:"required"`
	AccountID    string                   `json:"account" binding:"required"`
	Date         time.Time                `json:"date" binding:"required"`
	Description  string                   `json:"description" binding:"required,max=255"`
	CurrencyCode string                   `json:"currency" binding:"omitempty,len=3"`
	Status       domain.TransactionStatus `json:"status" binding:"omitempty,oneof=pending completed"`
}

// UpdateTransactionRequest is a partial patch; nil fields keep their value.
// Status changes go through the status endpoint.
type UpdateTransactionRequest struct {
	Amount       *decimal.Decimal        `json:"amount"`
	Type         *domain.TransactionType `json:"type" binding:"omitempty,oneof=income expense transfer"`
	CategoryID   *string                 `json:"category"`
	AccountID    *string                 `json:"account"`
	Date         *time.Time              `json:"date"`
	Description  *string                 `json:"description" binding:"omitempty,max=255"`
	CurrencyCode *string                 `json:"currency" binding:"omitempty,len=3"`
}

// TransitionStatusRequest moves a transaction through its status machine.
type TransitionStatusRequest struct {
	Status domain.TransactionStatus `json:"status" binding:"required,oneof=pending completed failed cancelled"`
}

// TransactionResponse defines the data returned for a transaction.
type TransactionResponse struct {
	TransactionID string                   `json:"id"`
	Amount        decimal.Decimal          `json:"amount"`
	Type          domain.TransactionType   `json:"type"`
	CategoryID    string                   `json:"category"`
	AccountID     string                   `json:"account"`
	Date          time.Time                `json:"date"`
	Description   string                   `json:"description"`
	CurrencyCode  string                   `json:"currency"`
	Status        domain.TransactionStatus `json:"status"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// ToTransactionResponse converts a domain.Transaction to its DTO.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: t.TransactionID,
		Amount:        t.Amount,
		Type:          t.Type,
		CategoryID:    t.CategoryID,
		AccountID:     t.AccountID,
		Date:          t.Date,
		Description:   t.Description,
		CurrencyCode:  t.CurrencyCode,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	AccountID  string                   `form:"account"`
	CategoryID string                   `form:"category"`
	Type       domain.TransactionType   `form:"type" binding:"omitempty,oneof=income expense transfer"`
	Status     domain.TransactionStatus `form:"status" binding:"omitempty,oneof=pending completed failed cancelled"`
	From       *time.Time               `form:"from" time_format:"2006-01-02"`
	To         *time.Time               `form:"to" time_format:"2006-01-02"`
	Limit      int                      `form:"limit,default=50" binding:"min=1,max=500"`
	NextToken  *string                  `form:"nextToken"`
}

// Filter converts the query into a repository filter.
func (p ListTransactionsParams) Filter() domain.TransactionFilter {
	return domain.TransactionFilter{
		AccountID:  p.AccountID,
		CategoryID: p.CategoryID,
		Type:       p.Type,
		Status:     p.Status,
		From:       p.From,
		To:         p.To,
	}
}

// ListTransactionsResponse is one page of transactions ordered by date, then id.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}
