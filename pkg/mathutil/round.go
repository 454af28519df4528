// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value half away from zero to two decimals, i.e. to represent
// real currency. Rounding goes through decimal so that 1.005 rounds to 1.01
// rather than to the binary float's 1.00.
func Round(val float64) float64 {
	return RoundTo(val, constants.DecimalPrecision)
}

// RoundTo rounds a value half away from zero to the given number of decimal places.
func RoundTo(val float64, places int32) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	return decimal.NewFromFloat(val).Round(places).InexactFloat64()
}

// IsFinite reports whether val is neither NaN nor an infinity.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// PercentChange returns the relative change from one value to another in percent.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * constants.PercentageMultiplier
}
