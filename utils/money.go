package utils

import (
	"fmt"
	"math"
)

// Round2 rounds x to 2 decimal places (banking-style simple round).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// FormatAmount renders a monetary value for display, e.g. "1234.50 EUR".
func FormatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", Round2(amount))
	}
	return fmt.Sprintf("%.2f %s", Round2(amount), currency)
}
