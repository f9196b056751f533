package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest moves Amount from PayerID to PayeeID.
type TransferRequest struct {
	PayerID AccountID
	PayeeID AccountID
	Amount  decimal.Decimal
}

// Validate checks the request before any database work is done.
func (r TransferRequest) Validate() error {
	if r.PayerID.IsZero() || r.PayeeID.IsZero() {
		return r.invalid(ErrEmptyID)
	}

	if r.PayerID == r.PayeeID {
		return r.invalid(ErrSameAccount)
	}

	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return r.invalid(ErrInvalidAmount)
	}

	if !HasMoneyScale(r.Amount) {
		return r.invalid(ErrAmountPrecision)
	}

	return nil
}

func (r TransferRequest) invalid(err error) error {
	return &TransferError{
		Kind:    KindInvalidRequest,
		PayerID: r.PayerID,
		PayeeID: r.PayeeID,
		Err:     err,
	}
}

// TransferResult is what a committed transfer reports back.
type TransferResult struct {
	ID           string
	PayerBalance decimal.Decimal
	Elapsed      time.Duration
	Attempts     int
}

// TransactionTime formats Elapsed as milliseconds with three decimals, e.g. "16.955ms".
func (r *TransferResult) TransactionTime() string {
	return FormatMillis(r.Elapsed)
}

// FormatMillis renders d as "<ms>.<3 decimals>ms".
func FormatMillis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
