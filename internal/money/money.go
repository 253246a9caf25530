// Package money holds the validated currency amount used across pricing and quotes.
// Amounts are USD with two display decimals; arithmetic is exact until Round is called.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimals shown for any amount.
const Places = 2

// MaxDigits bounds the whole-dollar part of a parsed amount.
const MaxDigits = 12

// maxInput bounds raw input before it reaches the decimal parser.
const maxInput = 32

var (
	ErrEmpty      = errors.New("amount is required")
	ErrNotNumeric = errors.New("amount must be numeric")
	ErrNegative   = errors.New("amount must be greater than or equal to 0")
	ErrPrecision  = errors.New("amount must have at most 2 decimal places")
	ErrTooLarge   = errors.New("amount is too large")
)

var limit = decimal.New(1, MaxDigits)

// Money is a non-negative-by-construction amount. The zero value is $0.
type Money struct {
	d decimal.Decimal
}

// Zero is $0.00.
var Zero = Money{}

// Parse builds a Money from user input. It is the only place raw strings become amounts.
// Only plain decimal notation is accepted: no exponents, at most two decimals that carry
// value and at most MaxDigits whole-dollar digits.
func Parse(raw string) (Money, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if raw == "" {
		return Zero, ErrEmpty
	}
	if len(raw) > maxInput {
		return Zero, fmt.Errorf("%w: %d characters", ErrTooLarge, len(raw))
	}
	if strings.ContainsAny(raw, "eE") {
		return Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if d.IsNegative() {
		return Zero, ErrNegative
	}
	if d.GreaterThanOrEqual(limit) {
		return Zero, fmt.Errorf("%w: %q", ErrTooLarge, raw)
	}
	if !d.Equal(d.Truncate(Places)) {
		return Zero, fmt.Errorf("%w: %q", ErrPrecision, raw)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants; it panics on invalid input.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("money: %v", err))
	}
	return m
}

// FromFloat converts a catalog cost, rounded to cents. Negative values clamp to zero.
func FromFloat(f float64) Money {
	d := decimal.NewFromFloat(f).Round(Places)
	if d.IsNegative() {
		return Zero
	}
	return Money{d: d}
}

// FromDecimal wraps d, clamping negatives to zero.
func FromDecimal(d decimal.Decimal) Money {
	if d.IsNegative() {
		return Zero
	}
	return Money{d: d}
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Mul scales by a factor such as a markup multiplier.
func (m Money) Mul(factor decimal.Decimal) Money { return FromDecimal(m.d.Mul(factor)) }

// Times scales by a whole count such as a quantity or hours.
func (m Money) Times(n int) Money { return FromDecimal(m.d.Mul(decimal.NewFromInt(int64(n)))) }

// Round rounds half away from zero to two decimals.
func (m Money) Round() Money { return Money{d: m.d.Round(Places)} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) LessThanOrEqual(o Money) bool { return m.d.LessThanOrEqual(o.d) }

// Float64 is for renderers that need a float; it loses exactness.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String prints the rounded amount with exactly two decimals, e.g. "132.60".
func (m Money) String() string { return m.d.StringFixed(Places) }

// Number prints the rounded amount in shortest form, e.g. "132.6" or "200".
func (m Money) Number() string { return m.d.Round(Places).String() }

// MarshalJSON writes the rounded amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Number()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	parsed, err := Parse(string(bytes.Trim(data, `"`)))
	if err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	*m = parsed
	return nil
}
