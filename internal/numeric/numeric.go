// Package numeric provides decimal-string helpers shared by validation and caches.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a decimal string into an exact decimal value.
// On failure, it returns (zero, false).
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ScaleFromStep derives the effective fractional precision from a decimal "step" string.
func ScaleFromStep(step string) int {
	step = strings.TrimSpace(step)
	if step == "" {
		return 0
	}
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(step[idx+1:], "0")
	return len(frac)
}

// FractionalDigits counts the significant fractional digits of d.
// Trailing zeros do not count: "100.00" has zero fractional digits.
func FractionalDigits(d decimal.Decimal) int {
	s := d.String()
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(s[idx+1:], "0")
	return len(frac)
}

// IsMultipleOf reports whether value sits on the grid defined by step.
// A zero or negative step disables the check.
func IsMultipleOf(value, step decimal.Decimal) bool {
	if step.Sign() <= 0 {
		return true
	}
	return value.Mod(step).IsZero()
}

// FloorToScale truncates d toward zero at the given fractional scale.
func FloorToScale(d decimal.Decimal, scale int) decimal.Decimal {
	return d.RoundDown(int32(scale))
}

// DivFloor divides num by den and truncates the quotient toward zero at the
// given fractional scale. Division never rounds up, so a derived BASE amount
// can never spend more QUOTE than the caller supplied.
func DivFloor(num, den decimal.Decimal, scale int) decimal.Decimal {
	if den.IsZero() {
		return decimal.Decimal{}
	}
	quotient := num.DivRound(den, int32(scale)+4)
	return quotient.RoundDown(int32(scale))
}
