package contract

import (
	"bytes"
	"fmt"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money travels with.
const MoneyScale = 2

// Money is a decimal amount encoded as a fixed two-place string, e.g. "1250.00".
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// ParseMoney parses a decimal string.
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", raw, err)
	}

	return Money{Decimal: d}, nil
}

// MustMoney parses a literal known to be valid.
func MustMoney(raw string) Money {
	m, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}

	return m
}

// String renders the fixed two-place form.
func (m Money) String() string {
	return m.StringFixed(MoneyScale)
}

// MarshalJSON encodes the amount as a quoted fixed-place string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		*m = Money{}

		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
