// Package money provides a fixed-point monetary value for the rent ledger.
//
// Amounts are held as an int64 count of minor units (two decimal places).
// Parsing and formatting go through shopspring/decimal so no float
// arithmetic ever touches a balance.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by Money.
const Scale = 2

const minorPerUnit = 100

var (
	ErrInvalidFormat = errors.New("invalid_money_format")
	ErrOutOfRange    = errors.New("money_out_of_range")
)

// Money is a monetary amount in minor units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// MaxAmount is the largest amount accepted for a single ledger entry.
// Sums of a handful of entries stay far inside int64.
const MaxAmount Money = 1_000_000_000_000 * minorPerUnit

// New returns an amount of whole currency units.
func New(units int64) Money {
	return Money(units * minorPerUnit)
}

// FromMinor returns an amount expressed in minor units.
func FromMinor(minor int64) Money {
	return Money(minor)
}

// FromDecimal converts d using banker's rounding to Scale places.
func FromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.RoundBank(Scale).Shift(Scale)
	if !minor.IsInteger() {
		return 0, ErrInvalidFormat
	}
	big := minor.BigInt()
	if !big.IsInt64() {
		return 0, ErrOutOfRange
	}
	return Money(big.Int64()), nil
}

// Parse reads a decimal string such as "1500", "1500.5" or "12000.00".
func Parse(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidFormat
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Minor() int64 { return int64(m) }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

func (m Money) Add(o Money) Money { return m + o }

// AddChecked is Add that reports int64 overflow as ErrOutOfRange.
func (m Money) AddChecked(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, ErrOutOfRange
	}
	return sum, nil
}

// InRange reports whether |m| does not exceed MaxAmount.
func (m Money) InRange() bool { return m <= MaxAmount && m >= -MaxAmount }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

// Cmp returns -1, 0 or 1.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12000.00" and 12000.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
