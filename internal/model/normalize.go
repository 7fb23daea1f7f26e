package model

import "math"

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// NormLinear maps x onto [0, 1] between lo and hi, saturating outside the range.
// A degenerate range (lo == hi) carries no information and yields 0.5.
func NormLinear(x, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return Clamp((x-lo)/(hi-lo), 0, 1)
}

func round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
