package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind tags the outcome class of a failed transfer.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindInvalidRequest
	KindInsufficientFunds
	KindPayerNotFound
	KindPayeeNotFound
	KindRetryableConflict
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindPayerNotFound:
		return "payer_not_found"
	case KindPayeeNotFound:
		return "payee_not_found"
	case KindRetryableConflict:
		return "retryable_conflict"
	default:
		return "fatal"
	}
}

// Business reports whether the kind is an expected outcome of the request
// itself, one that a retry cannot change and an operator need not look at.
func (k ErrorKind) Business() bool {
	switch k {
	case KindInvalidRequest, KindInsufficientFunds, KindPayerNotFound, KindPayeeNotFound:
		return true
	}
	return false
}

var (
	// Request errors
	ErrSameAccount     = errors.New("Payer and payee must be different accounts")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrAmountPrecision = errors.New("amount has more than 2 decimal places")
	ErrEmptyID         = errors.New("account id must not be empty")

	// Attempt errors
	ErrInsufficientFunds = errors.New("Insufficient balance")
	ErrPayerNotFound     = errors.New("Payer account not found")
	ErrPayeeNotFound     = errors.New("Payee account not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")

	// Commit errors
	ErrConflictRetriesExhausted = errors.New("serialization conflict retries exhausted")
)

var kindSentinels = map[ErrorKind][]error{
	KindInvalidRequest:    {ErrSameAccount, ErrInvalidAmount, ErrAmountPrecision, ErrEmptyID},
	KindInsufficientFunds: {ErrInsufficientFunds},
	KindPayerNotFound:     {ErrPayerNotFound},
	KindPayeeNotFound:     {ErrPayeeNotFound},
	KindRetryableConflict: {ErrConflictRetriesExhausted},
}

// TransferError is the single error type a transfer returns to its caller.
type TransferError struct {
	Kind     ErrorKind
	PayerID  AccountID
	PayeeID  AccountID
	Balance  decimal.Decimal // payer balance the failed debit would have produced
	Attempts int
	Err      error
}

func (e *TransferError) Error() string {
	switch e.Kind {
	case KindInsufficientFunds:
		return fmt.Sprintf("%v: %s", e.Err, e.Balance.String())
	case KindRetryableConflict:
		return fmt.Sprintf("%v after %d attempts", e.Err, e.Attempts)
	default:
		return e.Err.Error()
	}
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel errors that belong to the error's kind, so callers
// can test a business outcome without depending on the wrapped cause.
func (e *TransferError) Is(target error) bool {
	for _, s := range kindSentinels[e.Kind] {
		if s == target {
			return true
		}
	}
	return false
}

// KindOf classifies any error returned by the transfer engine.
// Errors that are not a *TransferError are Fatal.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindFatal
}

// AttemptsOf returns the attempts recorded on a transfer error.
func AttemptsOf(err error) int {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Attempts
	}
	return 0
}
