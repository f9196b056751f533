package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

const (
	debitPayerSQL  = `UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE id = $2 RETURNING balance`
	creditPayeeSQL = `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`
)

// TransferExecutor implements usecase.TransferExecutor with two single-row
// updates. The debit goes first so the resulting balance can be checked
// before the payee row is touched.
type TransferExecutor struct{}

// NewTransferExecutor creates a new TransferExecutor.
func NewTransferExecutor() *TransferExecutor {
	return &TransferExecutor{}
}

// Execute debits the payer and credits the payee inside tx.
func (e *TransferExecutor) Execute(ctx context.Context, tx usecase.Transaction, req domain.TransferRequest) (decimal.Decimal, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return decimal.Zero, err
	}

	amount, err := decimalToNumeric(req.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	var n pgtype.Numeric
	err = ptx.QueryRow(ctx, debitPayerSQL, amount, req.PayerID.String()).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, &domain.TransferError{Kind: domain.KindPayerNotFound, Err: domain.ErrPayerNotFound}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit payer: %w", err)
	}

	balance, err := numericToDecimal(n)
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit payer: %w", err)
	}

	if balance.IsNegative() {
		return decimal.Zero, &domain.TransferError{
			Kind:    domain.KindInsufficientFunds,
			Balance: balance,
			Err:     domain.ErrInsufficientFunds,
		}
	}

	tag, err := ptx.Exec(ctx, creditPayeeSQL, amount, req.PayeeID.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit payee: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return decimal.Zero, &domain.TransferError{Kind: domain.KindPayeeNotFound, Err: domain.ErrPayeeNotFound}
	}

	return balance, nil
}
