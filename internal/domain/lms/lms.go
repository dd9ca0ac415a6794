// Package lms implements Cole's LMS transform and the normal CDF used to turn
// a growth measurement into a z-score and percentile.
package lms

import (
	"fmt"
	"math"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// extendedCut is the |z| above which the WHO restricted LMS adjustment applies.
const extendedCut = 3

// ZScore applies the LMS (Box-Cox power) transform to value.
// Non-positive or non-finite values are rejected with ErrInvalidMeasurement.
// Extreme z-scores are returned as computed.
func ZScore(value float64, p model.LMS) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("%w: observed value %v must be finite and positive", model.ErrInvalidMeasurement, value)
	}
	if p.M <= 0 || p.S <= 0 {
		return 0, fmt.Errorf("%w: M and S must be positive (M=%g, S=%g)", model.ErrMalformedReferenceData, p.M, p.S)
	}
	if p.L == 0 {
		return math.Log(value/p.M) / p.S, nil
	}
	return (math.Pow(value/p.M, p.L) - 1) / (p.L * p.S), nil
}

// ExtendedZScore is ZScore with the WHO adjustment for |z| > 3: beyond the
// third SD curve the distance is measured in units of the last SD step
// (SD3-SD2 or SD-2-SD-3) instead of by the power transform, which keeps
// skewed tails from compressing. For L = 1 the result equals ZScore.
func ExtendedZScore(value float64, p model.LMS) (float64, error) {
	z, err := ZScore(value, p)
	if err != nil || math.Abs(z) <= extendedCut {
		return z, err
	}
	if z > extendedCut {
		sd2, sd3 := SDValue(p, 2), SDValue(p, 3)
		return extendedCut + (value-sd3)/(sd3-sd2), nil
	}
	sdm2, sdm3 := SDValue(p, -2), SDValue(p, -3)
	return -extendedCut + (value-sdm3)/(sdm2-sdm3), nil
}

// SDValue returns the measurement lying z standard deviations from the
// median: the inverse of ZScore.
func SDValue(p model.LMS, z float64) float64 {
	if p.L == 0 {
		return p.M * math.Exp(p.S*z)
	}
	return p.M * math.Pow(1+p.L*p.S*z, 1/p.L)
}
