package domain

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidIDFormat       = errors.New("invalid ID format")
	ErrNegativeOpening       = errors.New("opening balance must not be negative")
	ErrOpeningBalanceTooHigh = errors.New("opening balance exceeds maximum allowed")
)

// Validation constants
const (
	MaxAccountIDLength = 64
	MoneyScale         = 2               // matches balance NUMERIC(20, 2)
	MaxOpeningBalance  = "1000000000000" // 1 trillion
	MaxPageSize        = 1000
	DefaultPageSize    = 50
)

var accountIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAccountID checks an id supplied from outside the process.
func ValidateAccountID(id AccountID) error {
	if id.IsZero() {
		return ErrEmptyID
	}

	if len(id) > MaxAccountIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidIDFormat, MaxAccountIDLength)
	}

	if !accountIDRegex.MatchString(string(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidIDFormat, string(id))
	}

	return nil
}

// HasMoneyScale reports whether d is exact at the balance column's scale.
// A finer amount would be rounded separately on each leg of a transfer.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// ValidateOpeningBalance checks the balance of a newly seeded account.
func ValidateOpeningBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeOpening
	}

	if !HasMoneyScale(balance) {
		return ErrAmountPrecision
	}

	maxBalance, _ := decimal.NewFromString(MaxOpeningBalance)
	if balance.GreaterThan(maxBalance) {
		return fmt.Errorf("%w: maximum is %s", ErrOpeningBalanceTooHigh, MaxOpeningBalance)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
