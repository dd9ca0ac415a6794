package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound      = errors.New("no history for child")
	ErrInvalidLimit  = errors.New("invalid history limit")
	ErrInvalidRecord = errors.New("invalid history record")
	ErrDuplicate     = errors.New("history record already stored")
	ErrUnknownDriver = errors.New("unknown history driver")
	ErrClosed        = errors.New("history store closed")
)
