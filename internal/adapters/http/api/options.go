package api

import "github.com/selim-create/kg-growth/pkg/logger"

type options struct {
	maxBatchVisits int
	maxListLimit   int
	logger         logger.Logger
}

// Option configures the Server.
type Option func(*options)

// WithMaxBatchVisits caps the number of visits accepted by POST /visits/batch.
func WithMaxBatchVisits(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatchVisits = n
		}
	}
}

// WithMaxListLimit caps the limit accepted by the history endpoint.
func WithMaxListLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxListLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
