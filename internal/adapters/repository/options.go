package repository

import (
	"time"

	"github.com/selim-create/kg-growth/pkg/logger"
)

type options struct {
	logger       logger.Logger
	pingTimeout  time.Duration
	maxOpenConns int
}

// Option applies a configuration option to a Store.
type Option func(*options)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPingTimeout bounds the connectivity check of SQL stores at open.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingTimeout = d
		}
	}
}

// WithMaxOpenConns caps the SQL connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		pingTimeout:  5 * time.Second,
		maxOpenConns: 8,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("history")
	}
	return o
}
