package model

import "time"

// LMS is the Box-Cox power (L), median (M) and coefficient of variation (S)
// at one breakpoint of a reference table.
type LMS struct {
	L float64 `json:"l"`
	M float64 `json:"m"`
	S float64 `json:"s"`
}

// Measurement is a single caller-supplied observation.
// Breakpoint is age in days or length in cm depending on the type's Axis;
// Observed is kg for weights and cm for lengths and head circumference.
type Measurement struct {
	Type       MeasurementType `json:"measurement_type"`
	Sex        Sex             `json:"sex"`
	Breakpoint float64         `json:"breakpoint"`
	Observed   float64         `json:"observed"`
}

// RedFlag annotates an assessment that fell into a notable extreme band.
type RedFlag struct {
	Kind      RedFlagKind `json:"kind"`
	Severity  Severity    `json:"severity"`
	Direction Direction   `json:"direction"`
}

// AssessmentResult is the immutable output of one assessment.
type AssessmentResult struct {
	MeasurementType MeasurementType `json:"measurement_type"`
	Breakpoint      float64         `json:"breakpoint"`
	Observed        float64         `json:"observed"`
	LMS             LMS             `json:"lms"`
	ZScore          float64         `json:"z_score"`
	Percentile      float64         `json:"percentile"`
	Category        Category        `json:"category"`
	Interpretation  string          `json:"interpretation"`
	RedFlags        []RedFlag       `json:"red_flags"`
}

// HasCritical reports whether any flag on the result is critical.
func (r AssessmentResult) HasCritical() bool {
	for _, f := range r.RedFlags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Visit groups the measurements taken for one child at one age.
// Nil pointers mean "not measured".
type Visit struct {
	AgeDays             float64
	Sex                 Sex
	WeightKg            *float64
	HeightCm            *float64
	HeadCircumferenceCm *float64
}

// HistoryEvent carries the outcome of a visit to the history recorder.
type HistoryEvent struct {
	ChildID    string
	VisitID    string
	Sex        Sex
	MeasuredAt time.Time
	Results    []AssessmentResult
}
