// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

var currencySymbols = map[model.Currency]string{
	model.USD: "$",
	model.INR: "₹",
	model.CAD: "CA$",
	model.TRY: "₺",
}

// FormatAmount formats a monetary amount with its currency symbol.
// e.g., 1234.5 USD -> "$1,234.50"
func FormatAmount(amount decimal.Decimal, currency model.Currency) string {
	sym, ok := currencySymbols[currency]
	if !ok {
		sym = string(currency) + " "
	}
	if amount.IsNegative() {
		return "-" + sym + groupThousands(amount.Neg().StringFixed(2))
	}
	return sym + groupThousands(amount.StringFixed(2))
}

// FormatMoney formats a float amount with its currency symbol, used for
// model outputs where exact decimal arithmetic no longer applies.
func FormatMoney(amount float64, currency model.Currency) string {
	return FormatAmount(decimal.NewFromFloat(amount), currency)
}

// FormatSigned is like FormatAmount but always carries an explicit sign.
func FormatSigned(amount decimal.Decimal, currency model.Currency) string {
	if amount.IsNegative() {
		return FormatAmount(amount, currency)
	}
	return "+" + FormatAmount(amount, currency)
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatScore formats a 0-1 model score to three decimals.
func FormatScore(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	return groupThousands(strconv.FormatInt(n, 10))
}

// groupThousands inserts comma separators into the integer part of a
// plain decimal string.
func groupThousands(s string) string {
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}

	var result strings.Builder
	remainder := len(intPart) % 3
	if remainder > 0 {
		result.WriteString(intPart[:remainder])
	}
	for i := remainder; i < len(intPart); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(intPart[i : i+3])
	}
	return result.String() + frac
}
