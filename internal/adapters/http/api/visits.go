package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/assessment"
	"github.com/selim-create/kg-growth/internal/domain/dedupe"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/logger"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

// visitRequest mirrors the OpenAPI schema for POST /visits.
type visitRequest struct {
	ChildID             string   `json:"child_id"`
	VisitID             string   `json:"visit_id"`
	MeasuredAt          string   `json:"measured_at"`
	Sex                 string   `json:"sex"`
	AgeDays             *float64 `json:"age_days"`
	WeightKg            *float64 `json:"weight_kg"`
	HeightCm            *float64 `json:"height_cm"`
	HeadCircumferenceCm *float64 `json:"head_circumference_cm"`
}

func (v visitRequest) visit() (model.Visit, time.Time, error) {
	sex, err := model.ParseSex(v.Sex)
	if err != nil {
		return model.Visit{}, time.Time{}, err
	}
	if v.AgeDays == nil {
		return model.Visit{}, time.Time{}, fmt.Errorf("%w: missing age_days", model.ErrInvalidMeasurement)
	}
	if v.WeightKg == nil && v.HeightCm == nil && v.HeadCircumferenceCm == nil {
		return model.Visit{}, time.Time{}, fmt.Errorf("%w: no measurements supplied", model.ErrInvalidMeasurement)
	}
	if strings.TrimSpace(v.VisitID) != "" && strings.TrimSpace(v.ChildID) == "" {
		return model.Visit{}, time.Time{}, fmt.Errorf("%w: visit_id requires child_id", model.ErrInvalidMeasurement)
	}
	at := time.Now().UTC()
	if v.MeasuredAt != "" {
		at, err = time.Parse(time.RFC3339, v.MeasuredAt)
		if err != nil {
			return model.Visit{}, time.Time{}, fmt.Errorf("%w: invalid measured_at; must be RFC3339", model.ErrInvalidMeasurement)
		}
	}
	return model.Visit{
		AgeDays:             *v.AgeDays,
		Sex:                 sex,
		WeightKg:            v.WeightKg,
		HeightCm:            v.HeightCm,
		HeadCircumferenceCm: v.HeadCircumferenceCm,
	}, at, nil
}

type slotResponse struct {
	MeasurementType model.MeasurementType   `json:"measurement_type"`
	Result          *model.AssessmentResult `json:"result,omitempty"`
	Error           *errorResponse          `json:"error,omitempty"`
}

type visitResponse struct {
	ChildID   string         `json:"child_id,omitempty"`
	VisitID   string         `json:"visit_id,omitempty"`
	Results   []slotResponse `json:"results"`
	Recorded  bool           `json:"recorded"`
	Duplicate bool           `json:"duplicate"`
}

type batchRequest struct {
	Visits []visitRequest `json:"visits"`
}

type batchItem struct {
	*visitResponse
	Error *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

// VisitsHandler assesses visits and hands them to history recording.
type VisitsHandler struct {
	assessor  Assessor
	recorder  HistoryRecorder
	maxVisits int
	logger    logger.Logger
}

// NewVisitsHandler creates a new visits handler.
func NewVisitsHandler(assessor Assessor, recorder HistoryRecorder, maxVisits int, l logger.Logger) *VisitsHandler {
	return &VisitsHandler{assessor: assessor, recorder: recorder, maxVisits: maxVisits, logger: l}
}

// HandlePostVisit handles POST /visits requests. A full history queue does not
// fail the assessment; it answers 202 with recorded=false.
func (h *VisitsHandler) HandlePostVisit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_visit"
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.KindInvalidMeasurement, WrapKind(op, ErrBadRequest, err))
		return
	}
	resp, err := h.process(r.Context(), req)
	switch {
	case errors.Is(err, ErrBackpressure):
		writeJSON(w, http.StatusAccepted, resp)
	case err != nil:
		writeAssessmentError(w, Wrap(op, err))
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandlePostBatch handles POST /visits/batch requests. Every visit gets its
// own item; an invalid visit never fails the others.
func (h *VisitsHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_visits_batch"
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.KindInvalidMeasurement, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Visits) == 0 {
		writeError(w, http.StatusBadRequest, model.KindInvalidMeasurement, WrapKind(op, ErrBadRequest, errors.New("no visits")))
		return
	}
	if len(req.Visits) > h.maxVisits {
		writeError(w, http.StatusBadRequest, "limit_exceeded",
			WrapKind(op, ErrLimitExceeded, fmt.Errorf("%d visits, at most %d", len(req.Visits), h.maxVisits)))
		return
	}

	out := batchResponse{Results: make([]batchItem, 0, len(req.Visits))}
	for _, v := range req.Visits {
		resp, err := h.process(r.Context(), v)
		if err != nil && !errors.Is(err, ErrBackpressure) {
			out.Results = append(out.Results, batchItem{Error: &errorResponse{Code: model.ErrorKind(err), Message: err.Error()}})
			continue
		}
		out.Results = append(out.Results, batchItem{visitResponse: resp})
	}
	writeJSON(w, http.StatusOK, out)
}

// process assesses one visit and records it when a child id is present.
// It returns ErrBackpressure together with a valid response when the
// history queue refused the event.
func (h *VisitsHandler) process(ctx context.Context, req visitRequest) (*visitResponse, error) {
	v, at, err := req.visit()
	if err != nil {
		return nil, err
	}
	batch := h.assessor.AssessVisit(ctx, v)
	resp := &visitResponse{
		ChildID: req.ChildID,
		VisitID: req.VisitID,
		Results: slots(batch),
	}

	results := batch.Results()
	if req.ChildID == "" || len(results) == 0 || !h.recorder.HistoryEnabled() {
		return resp, nil
	}

	key := ""
	if req.VisitID != "" {
		key = dedupe.VisitKey(req.ChildID, req.VisitID)
		if h.recorder.SeenAndRecord(ctx, key) {
			metrics.RecordHistoryDuplicate()
			resp.Duplicate = true
			return resp, nil
		}
	}
	ev := model.HistoryEvent{ChildID: req.ChildID, VisitID: req.VisitID, Sex: v.Sex, MeasuredAt: at, Results: results}
	if err := h.recorder.Enqueue(ctx, ev); err != nil {
		if key != "" {
			h.recorder.Unrecord(ctx, key)
		}
		h.logger.Warn(ctx, "history not recorded", logger.String("child_id", req.ChildID), logger.Error(err))
		return resp, WrapKind("api.record_visit", ErrBackpressure, err)
	}
	resp.Recorded = true
	return resp, nil
}

func slots(b assessment.BatchResult) []slotResponse {
	out := make([]slotResponse, 0, len(b.Slots))
	for _, s := range b.Slots {
		sr := slotResponse{MeasurementType: s.MeasurementType, Result: s.Result}
		if s.Err != nil {
			sr.Error = &errorResponse{Code: model.ErrorKind(s.Err), Message: s.Err.Error()}
		}
		out = append(out, sr)
	}
	return out
}
