package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/openfluke/digitscope/nn"
	"github.com/openfluke/digitscope/preprocess"
	"github.com/openfluke/digitscope/weights"
)

const n = preprocess.DefaultSize

// pixelBundle routes the centre pixel to class 0 and the top-left pixel to class 1
func pixelBundle(t *testing.T) *nn.Bundle {
	t.Helper()
	first := [][]float64{make([]float64, n*n), make([]float64, n*n)}
	first[0][14*n+14] = 1
	first[1][0] = 1
	b, err := nn.NewBundle(
		nn.LayerSpec{Tag: 0, Weight: first, Bias: []float64{0, 0}},
		nn.LayerSpec{Tag: 2, Weight: [][]float64{{1, 0}, {0, 1}}, Bias: []float64{0, 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPredictCentering(t *testing.T) {
	e := New(weights.NewStaticStore(pixelBundle(t)), DefaultConfig())
	g := preprocess.NewGrid(n)
	g[0][0] = 1

	raw, err := e.Predict(context.Background(), g, false)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Predicted != 1 {
		t.Errorf("Uncentred: expected class 1, got %d", raw.Predicted)
	}

	centred, err := e.Predict(context.Background(), g, true)
	if err != nil {
		t.Fatal(err)
	}
	if centred.Predicted != 0 {
		t.Errorf("Centred: expected class 0, got %d", centred.Predicted)
	}
	if len(centred.Activations) != 3 || len(centred.Activations[0]) != n*n {
		t.Errorf("Unexpected activation trace shape")
	}
	if g[0][0] != 1 || g[14][14] != 0 {
		t.Error("Predict modified the caller's grid")
	}

	sum := 0.0
	for _, p := range centred.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("Probabilities sum to %v", sum)
	}

	// hidden [1 0], identity output layer: only hidden 0 -> class 0 survives
	if len(centred.Edges) != 1 || centred.Edges[0].FromNode != 0 || centred.Edges[0].ToNode != 0 {
		t.Errorf("Expected a single 0 -> 0 edge, got %+v", centred.Edges)
	}
}

func TestPredictBlankGrid(t *testing.T) {
	e := New(weights.NewStaticStore(pixelBundle(t)), DefaultConfig())
	p, err := e.Predict(context.Background(), preprocess.NewGrid(n), true)
	if err != nil {
		t.Fatal(err)
	}
	if p.Predicted != 0 || len(p.Edges) != 0 {
		t.Errorf("Blank grid: expected class 0 and no edges, got %d and %d edges", p.Predicted, len(p.Edges))
	}
}

func TestPredictErrors(t *testing.T) {
	e := New(weights.NewStaticStore(pixelBundle(t)), DefaultConfig())
	if _, err := e.Predict(context.Background(), preprocess.Grid{{1, 2}}, false); !errors.Is(err, preprocess.ErrNotSquare) {
		t.Errorf("Expected ErrNotSquare, got %v", err)
	}

	boom := errors.New("no weights")
	failing := New(weights.NewStoreFunc(func() (*nn.Bundle, error) { return nil, boom }), DefaultConfig())
	if _, err := failing.Predict(context.Background(), preprocess.NewGrid(n), false); !errors.Is(err, boom) {
		t.Errorf("Expected load error, got %v", err)
	}

	small, err := nn.NewBundle(nn.LayerSpec{Tag: 0, Weight: [][]float64{{1, 1, 1}}, Bias: []float64{0}})
	if err != nil {
		t.Fatal(err)
	}
	mismatched := New(weights.NewStaticStore(small), DefaultConfig())
	if _, err := mismatched.Predict(context.Background(), preprocess.NewGrid(n), false); !errors.Is(err, preprocess.ErrGridSize) {
		t.Errorf("Expected ErrGridSize, got %v", err)
	}
}

func TestPredictObserver(t *testing.T) {
	obs := nn.NewChannelObserver(8)
	cfg := DefaultConfig()
	cfg.Observer = obs
	e := New(weights.NewStaticStore(pixelBundle(t)), cfg)
	if _, err := e.Predict(context.Background(), preprocess.NewGrid(n), false); err != nil {
		t.Fatal(err)
	}
	if len(obs.Events) != 2 {
		t.Errorf("Expected 2 layer events, got %d", len(obs.Events))
	}
}
