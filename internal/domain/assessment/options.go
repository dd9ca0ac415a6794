package assessment

import (
	"github.com/selim-create/kg-growth/internal/domain/classify"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog sets the catalog provider. A *reference.Catalog or a
// *reference.Registry both satisfy it.
func WithCatalog(p reference.Provider) Option {
	return func(e *Engine) {
		if p != nil {
			e.catalog = p
		}
	}
}

// WithThresholds overrides the category cut-offs.
func WithThresholds(t classify.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithPolicy overrides the red-flag warning policy.
func WithPolicy(p classify.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithExtendedZ toggles the WHO adjustment for |z| > 3.
func WithExtendedZ(enabled bool) Option {
	return func(e *Engine) { e.extendedZ = enabled }
}

// WithWeightForLength toggles the weight-for-length slot in AssessAll.
func WithWeightForLength(enabled bool) Option {
	return func(e *Engine) { e.includeWFL = enabled }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
