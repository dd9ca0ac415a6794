package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/selim-create/kg-growth/internal/adapters/repository"
)

type historyResponse struct {
	ChildID string              `json:"child_id"`
	Records []repository.Record `json:"records"`
}

// HistoryHandler serves recorded assessments of a child.
type HistoryHandler struct {
	deps     HistoryReader
	recorder HistoryRecorder
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryReader, recorder HistoryRecorder, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, recorder: recorder, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /children/{id}/history?limit=N requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if !h.recorder.HistoryEnabled() {
		writeError(w, http.StatusNotFound, "history_disabled", NewKind(op, ErrHistoryDisabled))
		return
	}
	childID := r.PathValue("id")
	if childID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	n := min(defaultListLimit, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", s)))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrLimitExceeded, fmt.Errorf("limit %d above %d", n, h.maxLimit)))
		return
	}

	recs, err := h.deps.History(r.Context(), childID, n)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{ChildID: childID, Records: recs})
}
