// Package classify maps percentiles to growth categories and red flags.
//
// The classifier and the detector share one Thresholds value so a percentile
// in the severely low or severely high band always carries a critical flag
// and nothing else does.
package classify

import (
	"fmt"
	"math"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Default WHO percentile cut-offs.
const (
	DefaultSeverelyLow  = 3.0
	DefaultLow          = 15.0
	DefaultHigh         = 85.0
	DefaultSeverelyHigh = 97.0

	DefaultWarningLow  = 5.0
	DefaultWarningHigh = 95.0
)

// Thresholds are the percentile cut-offs of the five category bands:
//
//	p < SeverelyLow              severely low
//	SeverelyLow <= p < Low       low
//	Low <= p <= High             normal
//	High < p <= SeverelyHigh     high
//	p > SeverelyHigh             severely high
type Thresholds struct {
	SeverelyLow  float64 `json:"severely_low"`
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	SeverelyHigh float64 `json:"severely_high"`
}

// DefaultThresholds returns the WHO 3/15/85/97 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SeverelyLow:  DefaultSeverelyLow,
		Low:          DefaultLow,
		High:         DefaultHigh,
		SeverelyHigh: DefaultSeverelyHigh,
	}
}

// Validate checks 0 < SeverelyLow < Low < High < SeverelyHigh < 100.
func (t Thresholds) Validate() error {
	if !(0 < t.SeverelyLow && t.SeverelyLow < t.Low && t.Low < t.High &&
		t.High < t.SeverelyHigh && t.SeverelyHigh < 100) {
		return fmt.Errorf("%w: want 0 < %g < %g < %g < %g < 100",
			ErrInvalidThresholds, t.SeverelyLow, t.Low, t.High, t.SeverelyHigh)
	}
	return nil
}

// Category returns the band p falls in.
func (t Thresholds) Category(p float64) model.Category {
	switch {
	case p < t.SeverelyLow:
		return model.CategorySeverelyLow
	case p < t.Low:
		return model.CategoryLow
	case p <= t.High:
		return model.CategoryNormal
	case p <= t.SeverelyHigh:
		return model.CategoryHigh
	default:
		return model.CategorySeverelyHigh
	}
}

// Classifier assigns a category and interpretation text to a percentile.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier. Invalid thresholds are rejected.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Thresholds returns the configured cut-offs.
func (c *Classifier) Thresholds() Thresholds { return c.thresholds }

// Classify maps p to its category and a human-readable interpretation for mt.
func (c *Classifier) Classify(p float64, mt model.MeasurementType) (model.Category, string) {
	if math.IsNaN(p) {
		return "", ""
	}
	cat := c.thresholds.Category(p)
	return cat, Interpretation(mt, cat)
}

var interpretations = map[model.MeasurementType]map[model.Category]string{
	model.WeightForAge: {
		model.CategorySeverelyLow:  "Severely underweight for age",
		model.CategoryLow:          "Underweight for age",
		model.CategoryNormal:       "Normal weight for age",
		model.CategoryHigh:         "Above average weight for age",
		model.CategorySeverelyHigh: "Very high weight for age",
	},
	model.HeightForAge: {
		model.CategorySeverelyLow:  "Severely stunted",
		model.CategoryLow:          "Short for age",
		model.CategoryNormal:       "Normal height for age",
		model.CategoryHigh:         "Tall for age",
		model.CategorySeverelyHigh: "Very tall for age",
	},
	model.HeadCircumferenceForAge: {
		model.CategorySeverelyLow:  "Head circumference very small for age",
		model.CategoryLow:          "Head circumference small for age",
		model.CategoryNormal:       "Normal head circumference for age",
		model.CategoryHigh:         "Head circumference large for age",
		model.CategorySeverelyHigh: "Head circumference very large for age",
	},
	model.WeightForLength: {
		model.CategorySeverelyLow:  "Severely wasted",
		model.CategoryLow:          "Wasted",
		model.CategoryNormal:       "Normal weight for length",
		model.CategoryHigh:         "Risk of overweight",
		model.CategorySeverelyHigh: "Obese for length",
	},
}

// Interpretation returns the text for a category of mt.
func Interpretation(mt model.MeasurementType, cat model.Category) string {
	if byCat, ok := interpretations[mt]; ok {
		if s, ok := byCat[cat]; ok {
			return s
		}
	}
	return string(cat)
}
