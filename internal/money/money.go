// Package money implements the fixed-point amount type used for balances,
// ledger values and installments: two fractional digits, at most six integer
// digits, half-up rounding.
package money

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount carries.
const Scale = 2

var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxAbs = decimal.RequireFromString("999999.99")

	Zero = Money{}
)

// Money is an immutable decimal amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// New rounds d to two places.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Parse reads an amount supplied from outside the system. Values with more
// than two significant fractional digits or outside ±999999.99 are rejected.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal applies the same precision and range checks as Parse.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Round(Scale)) {
		return Zero, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), Scale)
	}
	m := Money{d: d.Round(Scale)}
	if !m.InRange() {
		return Zero, fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, m, maxAbs.StringFixed(Scale))
	}
	return m, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// Mul multiplies by an arbitrary factor and rounds the product.
func (m Money) Mul(factor decimal.Decimal) Money { return New(m.d.Mul(factor)) }

// DivInt divides by n and rounds the quotient. n must be non-zero.
func (m Money) DivInt(n int) Money { return New(m.d.Div(decimal.NewFromInt(int64(n)))) }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// InRange reports whether the magnitude fits six integer digits.
func (m Money) InRange() bool { return m.d.Abs().LessThanOrEqual(maxAbs) }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.LessThan(b) {
		return b
	}
	return a
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "12.34" and 12.34 with Parse's strictness.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.d = d.Round(Scale)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
