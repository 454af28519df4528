// Package format renders money and percentages for display.
package format

import (
	"fmt"
	"math"
	"strings"
)

// WholeCurrency returns a currency string rounded to whole units (e.g., "$638").
func WholeCurrency(amount float64) string {
	formatted := groupThousands(fmt.Sprintf("%.0f", math.Abs(amount)))
	if amount < 0 && formatted != "0" {
		return "-$" + formatted
	}
	return "$" + formatted
}

// Billions returns a market size expressed in billions (e.g., "$2.07B").
func Billions(amount float64) string {
	return fmt.Sprintf("$%.2fB", amount)
}

// SignedPercent returns a percentage with an explicit sign (e.g., "+12.8%").
func SignedPercent(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

func groupThousands(intPart string) string {
	if len(intPart) <= 3 {
		return intPart
	}
	var builder strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			builder.WriteByte(',')
		}
		builder.WriteRune(digit)
	}
	return builder.String()
}
