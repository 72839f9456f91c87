package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Fixed-point scales. Odds carry three decimals (1000 = 1.000x), lines
// one (10 = 1.0 points). Token amounts are int64 minor units throughout.
const (
	OddsUnit = int64(1000)
	LineUnit = int64(10)

	// MaxOdds caps prices at 99.000x so stake*odds stays far inside
	// int64 for any stake the config allows.
	MaxOdds = int64(99_000)
)

// Winnings is the potential profit above stake at the given milli-odds,
// truncated toward zero.
func Winnings(stake, odds int64) int64 {
	return stake*odds/OddsUnit - stake
}

// ValidOdds reports whether o is zero (not offered) or a price within
// [1.000x, 99.000x].
func ValidOdds(o int64) bool {
	return o == 0 || (o >= OddsUnit && o <= MaxOdds)
}

var (
	oddsScale = decimal.New(OddsUnit, 0)
	lineScale = decimal.New(LineUnit, 0)
)

// ParseOdds converts a decimal string such as "1.950" to milli-odds.
// "0" is accepted as "not offered"; anything else must be a price within
// [1.000, 99.000] with at most three decimals.
func ParseOdds(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: odds %q: %v", ErrValidation, s, err)
	}
	if d.IsZero() {
		return 0, nil
	}
	v := d.Mul(oddsScale)
	if !v.IsInteger() {
		return 0, fmt.Errorf("%w: odds %q has more than 3 decimals", ErrValidation, s)
	}
	n := v.IntPart()
	if n < OddsUnit {
		return 0, fmt.Errorf("%w: %q", ErrOddsBelowMinimum, s)
	}
	if n > MaxOdds {
		return 0, fmt.Errorf("%w: odds %q above 99.000", ErrValidation, s)
	}
	return n, nil
}

// ParseLine converts a decimal string such as "-7.5" to deci-points with
// at most one decimal.
func ParseLine(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: line %q: %v", ErrValidation, s, err)
	}
	v := d.Mul(lineScale)
	if !v.IsInteger() {
		return 0, fmt.Errorf("%w: line %q has more than 1 decimal", ErrValidation, s)
	}
	return v.IntPart(), nil
}

// FormatOdds renders milli-odds as a three-decimal string: 1950 -> "1.950".
func FormatOdds(o int64) string {
	return decimal.New(o, -3).StringFixed(3)
}

// FormatLine renders deci-points as a one-decimal string: -75 -> "-7.5".
func FormatLine(l int64) string {
	return decimal.New(l, -1).StringFixed(1)
}
