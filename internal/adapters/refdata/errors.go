package refdata

import "errors"

// Sentinel errors for reference data loading.
var (
	ErrUnknownDriver = errors.New("unknown refdata driver")
	ErrParse         = errors.New("parse reference table")
	ErrNoTables      = errors.New("no reference tables found")
	ErrNotFound      = errors.New("reference object not found")
	ErrInvalidKey    = errors.New("invalid reference key")
)
