package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/openfluke/digitscope/engine"
	"github.com/openfluke/digitscope/nn"
	"github.com/openfluke/digitscope/preprocess"
	"github.com/openfluke/digitscope/weights"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// newTestHandler serves a 4-pixel model: 4 -> 2 -> 2
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	b, err := nn.NewBundle(
		nn.LayerSpec{Tag: 0, Weight: [][]float64{{1, 0, 0, 0}, {0, 0, 0, 1}}, Bias: []float64{0, 0}},
		nn.LayerSpec{Tag: 3, Weight: [][]float64{{2, 0}, {0, -1}}, Bias: []float64{0, 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New(weights.NewStaticStore(b), engine.DefaultConfig())
	return New(e, Options{ModelID: "tiny"})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newTestHandler(t))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPredict(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/predict", PredictRequest{Grid: preprocess.Grid{{0.5, 0}, {0, 0}}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(out.ID); err != nil {
		t.Errorf("Response id is not a UUID: %q", out.ID)
	}
	if out.Prediction != 0 {
		t.Errorf("Expected class 0, got %d", out.Prediction)
	}
	if len(out.Activations) != 3 || len(out.Probabilities) != 2 {
		t.Errorf("Unexpected shapes: %d activations, %d probabilities", len(out.Activations), len(out.Probabilities))
	}
	// hidden [0.5 0], logits [1 0]: one edge, 0 -> 0, contribution +1
	if len(out.Edges) != 1 {
		t.Fatalf("Expected 1 edge, got %+v", out.Edges)
	}
	if out.Edges[0].Color != "#4287f5" || out.Edges[0].Weight != 2 || out.Edges[0].Opacity != 0.75 {
		t.Errorf("Unexpected edge: %+v", out.Edges[0])
	}
}

func TestPredictBadRequests(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/predict", "application/json", bytes.NewBufferString("{nope"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Bad JSON: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/predict", PredictRequest{Grid: preprocess.Grid{{1, 2, 3}}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Non-square grid: expected 400, got %d", resp.StatusCode)
	}

	// 3x3 grid is square but the model wants 4 inputs
	resp = postJSON(t, srv.URL+"/predict", PredictRequest{Grid: preprocess.NewGrid(3)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Wrong input size: expected 400, got %d", resp.StatusCode)
	}
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		t.Errorf("Expected an error body, got %+v (%v)", e, err)
	}
	if strings.Contains(e.Error, nn.ErrCorruptModel.Error()) {
		t.Errorf("Caller input reported as a model fault: %q", e.Error)
	}
}

func TestPredictBodyTooLarge(t *testing.T) {
	body := bytes.NewBufferString(`{"grid": [[`)
	for body.Len() < maxRequestBytes {
		body.WriteString("0,")
	}
	body.WriteString("0]]}")

	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Oversized body: expected 400, got %d", rec.Code)
	}
}

func TestHealthAndBlueprint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Layers != 2 || health.Inputs != 4 || health.Model != "tiny" {
		t.Errorf("Unexpected health: %+v", health)
	}

	resp2, err := http.Get(srv.URL + "/blueprint")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var bp nn.ModelTelemetry
	if err := json.NewDecoder(resp2.Body).Decode(&bp); err != nil {
		t.Fatal(err)
	}
	if bp.TotalLayers != 2 || bp.Layers[1].Tag != 3 || bp.TotalParams != 16 {
		t.Errorf("Unexpected blueprint: %+v", bp)
	}
}

func TestHealthModelUnavailable(t *testing.T) {
	store := weights.NewStoreFunc(func() (*nn.Bundle, error) { return nil, errors.New("missing") })
	srv := httptest.NewServer(New(engine.New(store, engine.DefaultConfig()), Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}
