package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/logger"
)

// assessmentRequest mirrors the OpenAPI schema for POST /assessments.
type assessmentRequest struct {
	MeasurementType string   `json:"measurement_type"`
	Sex             string   `json:"sex"`
	Breakpoint      *float64 `json:"breakpoint"`
	Observed        *float64 `json:"observed"`
}

func (a assessmentRequest) measurement() (model.Measurement, error) {
	mt, err := model.ParseMeasurementType(a.MeasurementType)
	if err != nil {
		return model.Measurement{}, err
	}
	sex, err := model.ParseSex(a.Sex)
	if err != nil {
		return model.Measurement{}, err
	}
	switch {
	case a.Breakpoint == nil:
		return model.Measurement{}, fmt.Errorf("%w: missing breakpoint", model.ErrInvalidMeasurement)
	case a.Observed == nil:
		return model.Measurement{}, fmt.Errorf("%w: missing observed", model.ErrInvalidMeasurement)
	}
	return model.Measurement{Type: mt, Sex: sex, Breakpoint: *a.Breakpoint, Observed: *a.Observed}, nil
}

// AssessmentHandler handles single assessments.
type AssessmentHandler struct {
	deps   Assessor
	logger logger.Logger
}

// NewAssessmentHandler creates a new assessment handler.
func NewAssessmentHandler(deps Assessor, l logger.Logger) *AssessmentHandler {
	return &AssessmentHandler{deps: deps, logger: l}
}

// HandlePostAssessment handles POST /assessments requests.
func (h *AssessmentHandler) HandlePostAssessment(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_assessment"
	var req assessmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.KindInvalidMeasurement, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := req.measurement()
	if err != nil {
		writeAssessmentError(w, Wrap(op, err))
		return
	}
	res, err := h.deps.Assess(r.Context(), m)
	if err != nil {
		logAssessmentFailure(r.Context(), h.logger, err)
		writeAssessmentError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// logAssessmentFailure logs server side failures; caller errors are already
// counted by the engine.
func logAssessmentFailure(ctx context.Context, l logger.Logger, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		l.Error(ctx, "assessment failed", logger.Error(err))
	}
}
