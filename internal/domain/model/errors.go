package model

import "errors"

// Assessment error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidMeasurement     = errors.New("invalid measurement")
	ErrOutOfRange             = errors.New("breakpoint out of reference range")
	ErrReferenceNotFound      = errors.New("reference table not found")
	ErrMalformedReferenceData = errors.New("malformed reference data")
)

// Stable error codes used on the wire and as metric labels.
const (
	KindInvalidMeasurement     = "invalid_measurement"
	KindOutOfRange             = "out_of_range"
	KindReferenceNotFound      = "reference_not_found"
	KindMalformedReferenceData = "malformed_reference_data"
	KindInternal               = "internal"
)

// ErrorKind maps err to its stable code. Nil maps to "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidMeasurement):
		return KindInvalidMeasurement
	case errors.Is(err, ErrOutOfRange):
		return KindOutOfRange
	case errors.Is(err, ErrReferenceNotFound):
		return KindReferenceNotFound
	case errors.Is(err, ErrMalformedReferenceData):
		return KindMalformedReferenceData
	default:
		return KindInternal
	}
}
