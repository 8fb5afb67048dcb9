package api

import (
	"net/http"

	"github.com/ayusman/posturecheck/internal/store"
)

// SamplesHandler exposes the dataset stored by the last successful training run.
type SamplesHandler struct {
	store *store.Store
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s}
}

type samplesResponse struct {
	Good int `json:"good"`
	Bad  int `json:"bad"`
}

// ServeHTTP handles /api/samples.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.counts(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// counts handles GET /api/samples
func (h *SamplesHandler) counts(w http.ResponseWriter, r *http.Request) {
	good, bad, err := h.store.Samples().Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count samples")
		return
	}
	writeJSON(w, http.StatusOK, samplesResponse{Good: good, Bad: bad})
}

// clear handles DELETE /api/samples
func (h *SamplesHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Samples().Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear samples")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
