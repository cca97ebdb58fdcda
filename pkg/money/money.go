// Package money keeps monetary values in fixed-point decimal and rounds only
// at the edges where amounts are persisted, displayed or sent to the gateway.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored and displayed.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ToCents converts a dollar amount to integer cents, rounding first.
func ToCents(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

// FromCents converts integer cents back to a decimal dollar amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Format renders an amount as "$12.50".
func Format(d decimal.Decimal) string {
	rounded := Round2(d)
	if rounded.IsNegative() {
		return fmt.Sprintf("-$%s", rounded.Neg().StringFixed(Places))
	}
	return fmt.Sprintf("$%s", rounded.StringFixed(Places))
}

// Parse reads a decimal amount such as "12.5" and rounds it to two places.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Round2(d), nil
}
