package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalOrZero parses a money string and falls back to zero on
// empty or malformed input. Imported settlements carry free-form
// amount columns, so a bad cell must not abort a whole calculation.
func DecimalOrZero(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders a decimal with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
