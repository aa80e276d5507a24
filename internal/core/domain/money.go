package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits kept in minor units.
const moneyScale = 2

// ErrInvalidMoney is returned when an amount cannot be represented in minor units.
var ErrInvalidMoney = errors.New("invalid money amount")

// Money is an amount in minor units (cents). Floating point is never used for balances.
type Money int64

// ParseMoney parses a decimal string such as "30.00" or "12.5".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount to minor units.
// Amounts with more than two fractional digits are rejected rather than rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(moneyScale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidMoney, d.String(), moneyScale)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidMoney, d.String())
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

// String formats the amount with two decimals, e.g. "1000.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// MarshalJSON emits the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMoney, string(data))
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
