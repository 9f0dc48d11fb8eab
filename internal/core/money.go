// Package core provides money parsing and formatting utilities.
//
// Amounts are kept as decimal.Decimal with two fractional digits. Parsing
// accepts both dot (12.34) and comma (12,34) decimal separators.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is used when no symbol is configured.
const DefaultCurrencySymbol = "₹"

// ParseAmount parses a strictly positive amount rounded half-up to 2 decimals.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("1.005")  -> 1.01, nil
//	ParseAmount("0")      -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseDue parses a non-negative outstanding amount. Zero settles the due.
func ParseDue(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeDue
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrValidation)
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrValidation, s)
	}
	return d.Round(2), nil
}

// FormatAmount renders d with two decimals and thousands separators, e.g. 1,234.50.
func FormatAmount(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatCurrency prefixes FormatAmount with symbol, keeping the sign in front.
func FormatCurrency(symbol string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + symbol + FormatAmount(d.Abs())
	}
	return symbol + FormatAmount(d)
}
