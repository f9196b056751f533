package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

// CreateAccountRequest represents a request to seed an account.
type CreateAccountRequest struct {
	ID      domain.AccountID `json:"id"`
	Balance decimal.Decimal  `json:"balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		ID:      r.ID,
		Balance: r.Balance,
	}
}

// CreateTransferRequest represents a request to move funds.
// Ids may be JSON numbers or strings.
type CreateTransferRequest struct {
	PayerID domain.AccountID `json:"payer_id"`
	PayeeID domain.AccountID `json:"payee_id"`
	Amount  decimal.Decimal  `json:"amount"`
}

// ToDomain converts to a transfer request.
func (r *CreateTransferRequest) ToDomain() domain.TransferRequest {
	return domain.TransferRequest{
		PayerID: r.PayerID,
		PayeeID: r.PayeeID,
		Amount:  r.Amount,
	}
}
