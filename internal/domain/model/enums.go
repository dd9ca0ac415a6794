// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Sex selects the sex-specific reference table. There is no unisex fallback.
type Sex string

// Supported sexes.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Sexes lists every supported sex in a stable order.
func Sexes() []Sex { return []Sex{SexMale, SexFemale} }

// Valid reports whether s is a known sex.
func (s Sex) Valid() bool { return s == SexMale || s == SexFemale }

// ParseSex accepts male/female plus the WHO file spellings boys/girls and m/f.
func ParseSex(v string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "male", "m", "boy", "boys":
		return SexMale, nil
	case "female", "f", "girl", "girls":
		return SexFemale, nil
	}
	return "", fmt.Errorf("%w: unknown sex %q", ErrInvalidMeasurement, v)
}

// MeasurementType identifies a growth indicator and its breakpoint axis.
type MeasurementType string

// Supported measurement types.
const (
	WeightForAge            MeasurementType = "weight_for_age"
	HeightForAge            MeasurementType = "height_for_age"
	HeadCircumferenceForAge MeasurementType = "head_circumference_for_age"
	WeightForLength         MeasurementType = "weight_for_length"
)

// MeasurementTypes lists every supported indicator in batch order.
func MeasurementTypes() []MeasurementType {
	return []MeasurementType{WeightForAge, HeightForAge, HeadCircumferenceForAge, WeightForLength}
}

// Valid reports whether t is a known measurement type.
func (t MeasurementType) Valid() bool {
	switch t {
	case WeightForAge, HeightForAge, HeadCircumferenceForAge, WeightForLength:
		return true
	}
	return false
}

// Axis returns the breakpoint axis of the indicator's reference table.
func (t MeasurementType) Axis() Axis {
	if t == WeightForLength {
		return AxisLengthCm
	}
	return AxisAgeDays
}

// Unit is the native unit of the observed value.
func (t MeasurementType) Unit() string {
	switch t {
	case WeightForAge, WeightForLength:
		return "kg"
	default:
		return "cm"
	}
}

// ParseMeasurementType accepts canonical names plus WHO short codes.
func ParseMeasurementType(v string) (MeasurementType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(WeightForAge), "wfa":
		return WeightForAge, nil
	case string(HeightForAge), "length_for_age", "hfa", "lfa", "lhfa":
		return HeightForAge, nil
	case string(HeadCircumferenceForAge), "hcfa":
		return HeadCircumferenceForAge, nil
	case string(WeightForLength), "wfl", "wfh", "weight_for_height":
		return WeightForLength, nil
	}
	return "", fmt.Errorf("%w: unknown measurement type %q", ErrInvalidMeasurement, v)
}

// Axis is the independent variable of a reference table.
type Axis string

// Breakpoint axes.
const (
	AxisAgeDays  Axis = "age_days"
	AxisLengthCm Axis = "length_cm"
)

// Category is the ordinal growth band, shared by all measurement types.
type Category string

// Categories from lowest to highest.
const (
	CategorySeverelyLow  Category = "severely_low"
	CategoryLow          Category = "low"
	CategoryNormal       Category = "normal"
	CategoryHigh         Category = "high"
	CategorySeverelyHigh Category = "severely_high"
)

// Severity of a red flag.
type Severity string

// Severities.
const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Direction tells on which side of the median a flag was raised.
type Direction string

// Directions.
const (
	DirectionLow  Direction = "low"
	DirectionHigh Direction = "high"
)

// RedFlagKind names the clinical concern behind a flag.
type RedFlagKind string

// Red flag kinds, one per measurement type and direction.
const (
	RedFlagUnderweight     RedFlagKind = "underweight"
	RedFlagOverweight      RedFlagKind = "overweight"
	RedFlagStunting        RedFlagKind = "stunting"
	RedFlagExcessiveHeight RedFlagKind = "excessive_height"
	RedFlagMicrocephaly    RedFlagKind = "microcephaly"
	RedFlagMacrocephaly    RedFlagKind = "macrocephaly"
	RedFlagWasting         RedFlagKind = "wasting"
	RedFlagObesity         RedFlagKind = "obesity"
)

// RedFlagKindFor maps a measurement type and direction to its concern.
func RedFlagKindFor(t MeasurementType, d Direction) RedFlagKind {
	low := d == DirectionLow
	switch t {
	case WeightForAge:
		if low {
			return RedFlagUnderweight
		}
		return RedFlagOverweight
	case HeightForAge:
		if low {
			return RedFlagStunting
		}
		return RedFlagExcessiveHeight
	case HeadCircumferenceForAge:
		if low {
			return RedFlagMicrocephaly
		}
		return RedFlagMacrocephaly
	default:
		if low {
			return RedFlagWasting
		}
		return RedFlagObesity
	}
}
