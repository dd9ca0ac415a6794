// Package repository stores the assessment history of children.
package repository

import (
	"context"
	"fmt"
)

// Store persists assessment records.
type Store interface {
	// Save stores one record. A record with the same child id, visit id
	// and measurement type as a stored one returns ErrDuplicate.
	Save(ctx context.Context, r Record) error
	// SaveAll stores the records of one visit atomically and returns how
	// many were new.
	SaveAll(ctx context.Context, rs []Record) (int, error)

	// ListByChild returns up to limit records for the child, newest first.
	// Returns ErrNotFound if nothing is stored for the child.
	ListByChild(ctx context.Context, childID string, limit int) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	Close() error
}

// Driver names a Store implementation.
type Driver string

// Supported drivers.
const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config selects and configures a Store.
type Config struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Open returns the store for cfg.Driver. DriverNone yields a nil store and
// no error; callers treat that as history being disabled.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, opts...)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}
