package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is an opaque account identifier. Ledgers keyed by integers and
// ledgers keyed by UUIDs are both supported, so JSON accepts numbers and strings.
type AccountID string

// String returns the id as text.
func (id AccountID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id AccountID) IsZero() bool {
	return id == ""
}

// Int64 returns the id as an integer when it is canonical decimal text.
func (id AccountID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != string(id) {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts `42` as well as `"42"` or `"6f1c…"`.
func (id *AccountID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AccountID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := n.Int64(); err != nil {
		return ErrInvalidIDFormat
	}
	*id = AccountID(n.String())
	return nil
}

// MarshalJSON writes integer ids as JSON numbers and everything else as strings.
func (id AccountID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int64(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// Account is a row of the ledger.
type Account struct {
	ID        AccountID
	Balance   decimal.Decimal
	UpdatedAt time.Time
}
