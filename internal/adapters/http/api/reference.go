package api

import (
	"net/http"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
)

type referenceResponse struct {
	LoadedAt *time.Time            `json:"loaded_at,omitempty"`
	Tables   []reference.TableInfo `json:"tables"`
}

type reloadResponse struct {
	Status string `json:"status"`
	Tables int    `json:"tables"`
}

// ReferenceHandler inspects and reloads the reference catalog.
type ReferenceHandler struct {
	deps   ReferenceAdmin
	logger logger.Logger
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps ReferenceAdmin, l logger.Logger) *ReferenceHandler {
	return &ReferenceHandler{deps: deps, logger: l}
}

// HandleGetReference handles GET /reference requests.
func (h *ReferenceHandler) HandleGetReference(w http.ResponseWriter, _ *http.Request) {
	tables, loadedAt := h.deps.ReferenceSummary()
	resp := referenceResponse{Tables: tables}
	if resp.Tables == nil {
		resp.Tables = []reference.TableInfo{}
	}
	if !loadedAt.IsZero() {
		resp.LoadedAt = &loadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReload handles POST /admin/reload requests. A failed reload leaves
// the previous catalog live.
func (h *ReferenceHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload"
	if err := h.deps.Reload(r.Context()); err != nil {
		h.logger.Error(r.Context(), "reference reload rejected", logger.Error(err))
		writeError(w, http.StatusInternalServerError, model.ErrorKind(err), Wrap(op, err))
		return
	}
	tables, _ := h.deps.ReferenceSummary()
	writeJSON(w, http.StatusOK, reloadResponse{Status: "reloaded", Tables: len(tables)})
}
