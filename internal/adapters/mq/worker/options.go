// Package worker drains the history queue into the history store.
package worker

import (
	"context"
	"time"

	"github.com/selim-create/kg-growth/internal/adapters/mq/queue"

	"github.com/selim-create/kg-growth/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a failed write is retried.
func WithRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries; attempt k waits k times it.
func WithRetryBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// WithDropHandler registers fn to be called with every event the worker gives
// up on after its last retry.
func WithDropHandler(fn func(ctx context.Context, e queue.Event)) Option {
	return func(w *InMemoryWorker) {
		w.onDrop = fn
	}
}
