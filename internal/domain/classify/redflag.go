package classify

import (
	"fmt"
	"math"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Policy controls the optional warning band. Percentiles in
// [SeverelyLow, WarningLow) or (WarningHigh, SeverelyHigh] raise a warning
// when WarningEnabled is set. Critical flags are always raised.
type Policy struct {
	WarningEnabled bool    `json:"warning_enabled"`
	WarningLow     float64 `json:"warning_low"`
	WarningHigh    float64 `json:"warning_high"`
}

// DefaultPolicy has the warning band switched off.
func DefaultPolicy() Policy {
	return Policy{WarningLow: DefaultWarningLow, WarningHigh: DefaultWarningHigh}
}

// Validate checks that an enabled warning band sits inside the normal
// outer bounds of t.
func (p Policy) Validate(t Thresholds) error {
	if !p.WarningEnabled {
		return nil
	}
	if !(t.SeverelyLow <= p.WarningLow && p.WarningLow < p.WarningHigh && p.WarningHigh <= t.SeverelyHigh) {
		return fmt.Errorf("%w: warning band [%g, %g] must lie within [%g, %g]",
			ErrInvalidThresholds, p.WarningLow, p.WarningHigh, t.SeverelyLow, t.SeverelyHigh)
	}
	return nil
}

// Detector raises red flags for extreme percentiles.
type Detector struct {
	thresholds Thresholds
	policy     Policy
}

// NewDetector creates a detector that shares cut-offs with the classifier.
func NewDetector(t Thresholds, p Policy) (*Detector, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(t); err != nil {
		return nil, err
	}
	return &Detector{thresholds: t, policy: p}, nil
}

// Detect returns the flags for percentile p of mt. It never returns more
// than one flag and an empty slice means nothing notable.
func (d *Detector) Detect(p float64, mt model.MeasurementType) []model.RedFlag {
	if math.IsNaN(p) {
		return []model.RedFlag{}
	}
	var (
		sev model.Severity
		dir model.Direction
	)
	switch {
	case p < d.thresholds.SeverelyLow:
		sev, dir = model.SeverityCritical, model.DirectionLow
	case p > d.thresholds.SeverelyHigh:
		sev, dir = model.SeverityCritical, model.DirectionHigh
	case d.policy.WarningEnabled && p < d.policy.WarningLow:
		sev, dir = model.SeverityWarning, model.DirectionLow
	case d.policy.WarningEnabled && p > d.policy.WarningHigh:
		sev, dir = model.SeverityWarning, model.DirectionHigh
	default:
		return []model.RedFlag{}
	}
	return []model.RedFlag{{
		Kind:      model.RedFlagKindFor(mt, dir),
		Severity:  sev,
		Direction: dir,
	}}
}
