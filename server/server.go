// Package server exposes the prediction engine as a small JSON API.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openfluke/digitscope/edges"
	"github.com/openfluke/digitscope/engine"
	"github.com/openfluke/digitscope/nn"
	"github.com/openfluke/digitscope/preprocess"
)

// maxRequestBytes bounds a /predict body; a 28x28 grid is well under 32KB.
const maxRequestBytes = 1 << 20

// Options configures the handler.
type Options struct {
	ModelID string // reported by /blueprint
	Center  bool   // default when a request does not say
}

type PredictRequest struct {
	Grid   preprocess.Grid `json:"grid"`
	Center *bool           `json:"center,omitempty"`
}

// EdgeView is an edge with its paint attributes.
type EdgeView struct {
	edges.Edge
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

type PredictResponse struct {
	ID            string      `json:"id"`
	Prediction    int         `json:"prediction"`
	Probabilities []float64   `json:"probabilities"`
	Activations   [][]float64 `json:"activations"`
	Edges         []EdgeView  `json:"edges"`
}

type ErrorResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Layers int    `json:"layers"`
	Inputs int    `json:"inputs"`
}

type handler struct {
	engine *engine.Engine
	opts   Options
}

// New returns the API handler.
func New(e *engine.Engine, opts Options) http.Handler {
	h := &handler{engine: e, opts: opts}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /blueprint", h.blueprint)
	mux.HandleFunc("POST /predict", h.predict)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Model(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Model:  h.opts.ModelID,
		Layers: len(b.Layers),
		Inputs: b.InDim(),
	})
}

func (h *handler) blueprint(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Model(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, nn.Blueprint(b, h.opts.ModelID))
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: id, Error: err.Error()})
		return
	}
	center := h.opts.Center
	if req.Center != nil {
		center = *req.Center
	}

	p, err := h.engine.Predict(r.Context(), req.Grid, center)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, preprocess.ErrNotSquare) || errors.Is(err, preprocess.ErrGridSize) {
			status = http.StatusBadRequest
		}
		log.Printf("predict %s failed: %v", id, err)
		writeJSON(w, status, ErrorResponse{ID: id, Error: err.Error()})
		return
	}

	views := make([]EdgeView, len(p.Edges))
	for i, e := range p.Edges {
		s := e.Style()
		views[i] = EdgeView{Edge: e, Color: s.Hex(), Opacity: s.Opacity}
	}

	log.Printf("predict %s: digit=%d p=%.3f edges=%d center=%v in %s",
		id, p.Predicted, p.Probabilities[p.Predicted], len(views), center, time.Since(start))

	writeJSON(w, http.StatusOK, PredictResponse{
		ID:            id,
		Prediction:    p.Predicted,
		Probabilities: p.Probabilities,
		Activations:   p.Activations,
		Edges:         views,
	})
}
