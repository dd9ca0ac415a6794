// Package assessment orchestrates a growth assessment: resolve the reference
// table, interpolate LMS, compute z and percentile, classify and flag.
//
// Engine holds no mutable state. Assess and AssessAll are safe for concurrent
// use and return identical results for identical inputs on the same catalog.
package assessment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/classify"
	"github.com/selim-create/kg-growth/internal/domain/lms"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

// Engine computes assessments against the current reference catalog.
type Engine struct {
	catalog    reference.Provider
	thresholds classify.Thresholds
	policy     classify.Policy
	extendedZ  bool
	includeWFL bool
	logger     logger.Logger

	classifier *classify.Classifier
	detector   *classify.Detector
}

// NewEngine creates an engine. Thresholds and policy are validated here so a
// misconfigured engine never comes up.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds: classify.DefaultThresholds(),
		policy:     classify.DefaultPolicy(),
		extendedZ:  true,
		includeWFL: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}

	var err error
	if e.classifier, err = classify.NewClassifier(e.thresholds); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if e.detector, err = classify.NewDetector(e.thresholds, e.policy); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// Assess runs the full pipeline for one measurement.
func (e *Engine) Assess(m model.Measurement) (model.AssessmentResult, error) {
	start := time.Now()
	res, err := e.assess(m)
	metrics.RecordAssessmentLatency(time.Since(start))
	if err != nil {
		metrics.RecordAssessmentError(string(m.Type), model.ErrorKind(err))
		e.logger.Debug(context.Background(), "assessment rejected",
			logger.String("measurement_type", string(m.Type)),
			logger.String("kind", model.ErrorKind(err)),
			logger.Error(err),
		)
		return model.AssessmentResult{}, err
	}
	metrics.RecordAssessment(string(res.MeasurementType), string(res.Category))
	metrics.ObserveZScore(string(res.MeasurementType), res.ZScore)
	for _, f := range res.RedFlags {
		metrics.RecordRedFlag(string(res.MeasurementType), string(f.Kind), string(f.Severity))
	}
	return res, nil
}

func (e *Engine) assess(m model.Measurement) (model.AssessmentResult, error) {
	if err := validate(m); err != nil {
		return model.AssessmentResult{}, err
	}

	var cat *reference.Catalog
	if e.catalog != nil {
		cat = e.catalog.Current()
	}
	table, err := cat.Resolve(m.Type, m.Sex)
	if err != nil {
		return model.AssessmentResult{}, err
	}
	params, err := reference.Interpolate(table, m.Breakpoint)
	if err != nil {
		return model.AssessmentResult{}, err
	}

	var z float64
	if e.extendedZ {
		z, err = lms.ExtendedZScore(m.Observed, params)
	} else {
		z, err = lms.ZScore(m.Observed, params)
	}
	if err != nil {
		return model.AssessmentResult{}, err
	}
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return model.AssessmentResult{}, fmt.Errorf("%w: z-score for %s is not finite", model.ErrInvalidMeasurement, m.Type)
	}

	p := lms.Percentile(z)
	category, text := e.classifier.Classify(p, m.Type)
	return model.AssessmentResult{
		MeasurementType: m.Type,
		Breakpoint:      m.Breakpoint,
		Observed:        m.Observed,
		LMS:             params,
		ZScore:          z,
		Percentile:      p,
		Category:        category,
		Interpretation:  text,
		RedFlags:        e.detector.Detect(p, m.Type),
	}, nil
}

// validate rejects unknown enums and non-finite or out-of-domain numbers.
// Age 0 (birth) is a valid breakpoint; lengths and observed values must be
// strictly positive.
func validate(m model.Measurement) error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown measurement type %q", model.ErrInvalidMeasurement, m.Type)
	}
	if !m.Sex.Valid() {
		return fmt.Errorf("%w: unknown sex %q", model.ErrInvalidMeasurement, m.Sex)
	}
	if math.IsNaN(m.Breakpoint) || math.IsInf(m.Breakpoint, 0) {
		return fmt.Errorf("%w: %s breakpoint is not finite", model.ErrInvalidMeasurement, m.Type)
	}
	if m.Breakpoint < 0 || (m.Type.Axis() == model.AxisLengthCm && m.Breakpoint == 0) {
		return fmt.Errorf("%w: %s breakpoint %g must be positive", model.ErrInvalidMeasurement, m.Type, m.Breakpoint)
	}
	if math.IsNaN(m.Observed) || math.IsInf(m.Observed, 0) || m.Observed <= 0 {
		return fmt.Errorf("%w: %s observed value %v must be finite and positive", model.ErrInvalidMeasurement, m.Type, m.Observed)
	}
	return nil
}
