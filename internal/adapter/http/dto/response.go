package dto

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        domain.AccountID `json:"id"`
	Balance   decimal.Decimal  `json:"balance"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Balance:   a.Balance,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// TransferResponse is the result of a committed transfer.
type TransferResponse struct {
	ID              string          `json:"id"`
	PayerBalance    decimal.Decimal `json:"payer_balance"`
	TransactionTime string          `json:"transaction_time"`
	Attempts        int             `json:"attempts"`
}

// TransferFromDomain converts a transfer result to response.
func TransferFromDomain(r *domain.TransferResult) *TransferResponse {
	return &TransferResponse{
		ID:              r.ID,
		PayerBalance:    r.PayerBalance,
		TransactionTime: r.TransactionTime(),
		Attempts:        r.Attempts,
	}
}

// LedgerResponse summarises the ledger.
type LedgerResponse struct {
	Accounts   int64           `json:"accounts"`
	Negative   int64           `json:"negative_balances"`
	Total      decimal.Decimal `json:"total"`
	Consistent bool            `json:"consistent"`
}

// LedgerFromDomain converts a ledger snapshot to response.
func LedgerFromDomain(s *domain.LedgerSnapshot) *LedgerResponse {
	return &LedgerResponse{
		Accounts:   s.Accounts,
		Negative:   s.Negative,
		Total:      s.Total,
		Consistent: s.Consistent(),
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Transfer failures only
	Kind         string           `json:"kind,omitempty"`
	Attempts     int              `json:"attempts,omitempty"`
	PayerBalance *decimal.Decimal `json:"payer_balance,omitempty"`
}

// TransferErrorFrom builds an error body for a failed transfer.
func TransferErrorFrom(message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Error:    message,
		Message:  err.Error(),
		Kind:     domain.KindOf(err).String(),
		Attempts: domain.AttemptsOf(err),
	}

	var te *domain.TransferError
	if errors.As(err, &te) && te.Kind == domain.KindInsufficientFunds {
		balance := te.Balance
		resp.PayerBalance = &balance
	}

	return resp
}
