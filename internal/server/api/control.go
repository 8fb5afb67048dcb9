package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/recorder"
	"github.com/ayusman/posturecheck/internal/store"
)

// Controller is the engine surface exposed over HTTP. *app.Engine implements it.
type Controller interface {
	Snapshot() app.Snapshot
	StartGood() recorder.Transition
	StartBad() recorder.Transition
	Stop() recorder.Transition
	Train(ctx context.Context) (classifier.TrainResult, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Reset()
}

// ControlHandler handles status and control requests.
type ControlHandler struct {
	engine Controller
}

// NewControlHandler creates a new ControlHandler for the given engine.
func NewControlHandler(engine Controller) *ControlHandler {
	return &ControlHandler{engine: engine}
}

type transitionResponse struct {
	Transition string       `json:"transition"`
	Snapshot   app.Snapshot `json:"snapshot"`
}

type trainResponse struct {
	Examples int          `json:"examples"`
	Epochs   int          `json:"epochs"`
	Loss     float64      `json:"loss"`
	Accuracy float64      `json:"accuracy"`
	Duration string       `json:"duration"`
	Snapshot app.Snapshot `json:"snapshot"`
}

// ServeHTTP routes:
//
//	GET  /api/status
//	POST /api/recording/{good|bad|stop}
//	POST /api/model/{train|save|load}
//	POST /api/reset
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/")

	if path == "status" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.engine.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch path {
	case "recording/good":
		h.transition(w, h.engine.StartGood())
	case "recording/bad":
		h.transition(w, h.engine.StartBad())
	case "recording/stop":
		h.transition(w, h.engine.Stop())
	case "model/train":
		h.train(w, r)
	case "model/save":
		h.persist(w, r, h.engine.Save)
	case "model/load":
		h.persist(w, r, h.engine.Load)
	case "reset":
		h.engine.Reset()
		writeJSON(w, http.StatusOK, h.engine.Snapshot())
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ControlHandler) transition(w http.ResponseWriter, t recorder.Transition) {
	writeJSON(w, http.StatusOK, transitionResponse{
		Transition: t.String(),
		Snapshot:   h.engine.Snapshot(),
	})
}

// train handles POST /api/model/train. Training outlives a disconnected client.
func (h *ControlHandler) train(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Train(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, trainResponse{
		Examples: result.Examples,
		Epochs:   result.Epochs,
		Loss:     result.Loss,
		Accuracy: result.Accuracy,
		Duration: result.Duration.String(),
		Snapshot: h.engine.Snapshot(),
	})
}

func (h *ControlHandler) persist(w http.ResponseWriter, r *http.Request, op func(context.Context) error) {
	if err := op(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNeedMoreSamples),
		errors.Is(err, app.ErrTrainingInProgress),
		errors.Is(err, app.ErrTrainingDiscarded),
		errors.Is(err, app.ErrNotTrained):
		return http.StatusConflict
	// Load wraps ErrNoStore in ErrNoSavedModel, so the store check comes first.
	case errors.Is(err, app.ErrNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound), errors.Is(err, app.ErrNoSavedModel):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
