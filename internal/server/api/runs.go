package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/posturecheck/internal/store"
)

// DefaultRunsLimit is the number of runs returned when no limit is given.
const DefaultRunsLimit = 20

// RunsHandler lists training run history.
type RunsHandler struct {
	store *store.Store
}

// NewRunsHandler creates a new RunsHandler with the given store.
func NewRunsHandler(s *store.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

type listRunsResponse struct {
	Runs []*store.TrainingRun `json:"runs"`
}

// ServeHTTP handles GET /api/runs?limit=N.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.TrainingRun{}
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}
