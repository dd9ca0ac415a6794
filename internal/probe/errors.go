package probe

import "errors"

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNoReference      = errors.New("service has no age-based reference tables")
	ErrViolations       = errors.New("probe found violations")
)
