// Package currency converts regression output into whole-unit display amounts.
//
// The regression service reports prices in thousands of currency units. The
// display always shows whole units, so values are scaled by 1000 and rounded
// half away from zero before formatting.
package currency

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultSymbol is prefixed to formatted amounts when none is configured.
const DefaultSymbol = "$"

var thousand = decimal.NewFromInt(1000)

// FromThousands scales a model output by 1000 and rounds to whole units.
func FromThousands(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Mul(thousand).Round(0)
}

// Format renders a whole-unit amount with thousands grouping, e.g. "$24,000".
// Fractional parts are rounded away first; negative amounts render as "-$1,500".
func Format(amount decimal.Decimal, symbol string) string {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	n := amount.Round(0).BigInt()
	if n.Sign() < 0 {
		return "-" + symbol + humanize.BigComma(n.Neg(n))
	}
	return symbol + humanize.BigComma(n)
}

// FormatThousands is FromThousands followed by Format.
func FormatThousands(v float64, symbol string) (decimal.Decimal, string) {
	amount := FromThousands(v)
	return amount, Format(amount, symbol)
}
