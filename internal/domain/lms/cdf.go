package lms

import "math"

// NormalCDF returns Φ(z), the standard normal cumulative distribution.
// It uses erfc, which keeps full relative precision in the lower tail.
func NormalCDF(z float64) float64 {
	if z == 0 {
		return 0.5
	}
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// Percentile converts a z-score to a rank in [0, 100].
func Percentile(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	p := 100 * NormalCDF(z)
	return math.Max(0, math.Min(100, p))
}
