package domain

import "github.com/shopspring/decimal"

// LedgerSnapshot summarises every account at one point in time.
// Transfers move funds without creating them, so Total only changes when
// accounts are seeded.
type LedgerSnapshot struct {
	Accounts int64
	Negative int64
	Total    decimal.Decimal
}

// Consistent reports whether no committed balance is negative.
func (s *LedgerSnapshot) Consistent() bool {
	return s.Negative == 0
}
