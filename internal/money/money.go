package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of decimal places in a minor unit (cents).
const minorDigits = 2

// ErrInvalidAmount is returned when an amount carries more precision than
// the minor-unit resolution, or cannot be parsed at all.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is an exact currency amount, stored as a signed count of minor
// units. Arithmetic never goes through binary floating point.
type Money struct {
	cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// FromCents returns a Money holding the given number of minor units.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// FromDecimal converts a decimal amount to Money. Amounts with more than
// two decimal places are rejected with ErrInvalidAmount.
func FromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(minorDigits)
	if !scaled.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidAmount, d)
	}
	return Money{cents: scaled.IntPart()}, nil
}

// FromString parses a decimal string like "10.00" into Money.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustFromString is FromString that panics on error, for constants and tests.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 { return m.cents }

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -minorDigits)
}

// String formats the amount with two decimal places.
func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{cents: m.cents - other.cents}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{cents: -m.cents}
}

// Mul returns m multiplied by an integer scalar.
func (m Money) Mul(n int64) Money {
	return Money{cents: m.cents * n}
}

// MulDecimal returns m scaled by a decimal factor, rounded half-to-even
// on minor units.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	scaled := m.Decimal().Mul(factor).RoundBank(minorDigits)
	return Money{cents: scaled.Shift(minorDigits).IntPart()}
}

// Cmp returns -1, 0, or 1 comparing m to other.
func (m Money) Cmp(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two amounts are identical.
func (m Money) Equal(other Money) bool { return m.cents == other.cents }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.cents == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.cents < 0 }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.cents > 0 }

// Split divides the amount into n parts that sum exactly back to m.
// The remainder cents are assigned to the leading parts, so any two
// parts differ by at most one minor unit.
func (m Money) Split(n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split into %d parts", n)
	}
	base := m.cents / int64(n)
	rem := m.cents % int64(n)

	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{cents: base}
	}
	// rem carries the sign of m; walk it out one cent at a time.
	step := int64(1)
	if rem < 0 {
		step = -1
		rem = -rem
	}
	for i := int64(0); i < rem; i++ {
		parts[i].cents += step
	}
	return parts, nil
}
