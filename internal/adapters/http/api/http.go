// Package api exposes growth assessments, visit recording, history and
// reference data administration over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/selim-create/kg-growth/internal/adapters/repository"
	"github.com/selim-create/kg-growth/internal/domain/assessment"
	"github.com/selim-create/kg-growth/internal/domain/dedupe"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
)

const (
	maxBodyBytes          = 1 << 20
	defaultMaxBatchVisits = 500
	defaultMaxListLimit   = 500
	defaultListLimit      = 50
)

// Assessor runs assessments against the live reference catalog.
type Assessor interface {
	Assess(ctx context.Context, m model.Measurement) (model.AssessmentResult, error)
	AssessVisit(ctx context.Context, v model.Visit) assessment.BatchResult
}

// HistoryRecorder accepts visit outcomes for asynchronous recording.
type HistoryRecorder interface {
	dedupe.Deduper
	HistoryEnabled() bool
	// Enqueue hands the event to the history writers without blocking.
	Enqueue(ctx context.Context, e model.HistoryEvent) error
}

// HistoryReader reads a child's recorded assessments.
type HistoryReader interface {
	History(ctx context.Context, childID string, limit int) ([]repository.Record, error)
}

// ReferenceAdmin inspects and reloads the reference catalog.
type ReferenceAdmin interface {
	ReferenceSummary() ([]reference.TableInfo, time.Time)
	Reload(ctx context.Context) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Assessor
	HistoryRecorder
	HistoryReader
	ReferenceAdmin
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	assessmentHandler *AssessmentHandler
	visitsHandler     *VisitsHandler
	historyHandler    *HistoryHandler
	referenceHandler  *ReferenceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{
		maxBatchVisits: defaultMaxBatchVisits,
		maxListLimit:   defaultMaxListLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		assessmentHandler: NewAssessmentHandler(deps, o.logger),
		visitsHandler:     NewVisitsHandler(deps, deps, o.maxBatchVisits, o.logger),
		historyHandler:    NewHistoryHandler(deps, deps, o.maxListLimit),
		referenceHandler:  NewReferenceHandler(deps, o.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /assessments", MetricsMiddleware(s.assessmentHandler.HandlePostAssessment, "assessments"))
	mux.HandleFunc("POST /visits", MetricsMiddleware(s.visitsHandler.HandlePostVisit, "visits"))
	mux.HandleFunc("POST /visits/batch", MetricsMiddleware(s.visitsHandler.HandlePostBatch, "visits_batch"))
	mux.HandleFunc("GET /children/{id}/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("GET /reference", MetricsMiddleware(s.referenceHandler.HandleGetReference, "reference"))
	mux.HandleFunc("POST /admin/reload", MetricsMiddleware(s.referenceHandler.HandleReload, "reload"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeAssessmentError maps the assessment error taxonomy to HTTP.
func writeAssessmentError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), model.ErrorKind(err), err)
}

func statusFor(err error) int {
	switch model.ErrorKind(err) {
	case model.KindInvalidMeasurement:
		return http.StatusBadRequest
	case model.KindOutOfRange:
		return http.StatusUnprocessableEntity
	case model.KindReferenceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
