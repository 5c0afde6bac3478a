package products

import (
	"strconv"
	"strings"
)

// DefaultCurrencySymbol is used when no symbol is configured.
const DefaultCurrencySymbol = "€"

// FormatPrice renders amount with two decimals and a comma separator,
// e.g. "€ 29,99". A nil amount renders as "N/A".
func FormatPrice(amount *float64, symbol string) string {
	if amount == nil {
		return "N/A"
	}
	return FormatAmount(*amount, symbol)
}

// FormatAmount is FormatPrice for a known amount.
func FormatAmount(amount float64, symbol string) string {
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	fixed := strconv.FormatFloat(amount, 'f', 2, 64)
	return symbol + " " + strings.Replace(fixed, ".", ",", 1)
}
