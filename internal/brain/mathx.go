package brain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Ratio divides num by den and defines division by zero as 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Change returns (current-base)/base, or 0 when base is 0.
func Change(current, base float64) float64 {
	return Ratio(current-base, base)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Unit bounds v to [0, 1].
func Unit(v float64) float64 {
	return Clamp(v, 0, 1)
}

// RoundCents rounds a dollar amount half away from zero to two places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Percent turns a fraction into a percentage rounded to two places.
func Percent(fraction float64) float64 {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// Round4 keeps ratios readable in persisted payloads.
func Round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
