// Package engine runs the full prediction pipeline for one drawn grid: preprocessing,
// the forward pass and edge selection.
package engine

import (
	"context"
	"fmt"

	"github.com/openfluke/digitscope/edges"
	"github.com/openfluke/digitscope/nn"
	"github.com/openfluke/digitscope/preprocess"
)

// ModelSource supplies the shared, read-only model. *weights.Store implements it.
type ModelSource interface {
	Load(ctx context.Context) (*nn.Bundle, error)
}

// Config holds the pipeline knobs.
type Config struct {
	Preprocess preprocess.Options
	Edges      edges.Config
	Observer   nn.Observer // optional, receives one event per layer
}

// DefaultConfig returns MNIST centring and the default edge selection.
func DefaultConfig() Config {
	return Config{
		Preprocess: preprocess.DefaultOptions(),
		Edges:      edges.DefaultConfig(),
	}
}

// Prediction is a forward-pass result plus the edges selected from it.
type Prediction struct {
	nn.Result
	Edges []edges.Edge `json:"edges"`
}

// Engine is safe for concurrent use.
type Engine struct {
	models ModelSource
	cfg    Config
}

// New creates an engine reading its model from models.
func New(models ModelSource, cfg Config) *Engine {
	return &Engine{models: models, cfg: cfg}
}

// Model returns the loaded bundle, loading it on first use.
func (e *Engine) Model(ctx context.Context) (*nn.Bundle, error) {
	return e.models.Load(ctx)
}

// Predict classifies g. With center set the drawing is re-framed before inference.
// The grid is only read.
func (e *Engine) Predict(ctx context.Context, g preprocess.Grid, center bool) (*Prediction, error) {
	if err := preprocess.Check(g); err != nil {
		return nil, err
	}

	var input []float64
	if center {
		input = preprocess.CenterAndFlatten(g, e.cfg.Preprocess)
	} else {
		input = preprocess.Flatten(g)
	}

	bundle, err := e.models.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if len(input) != bundle.InDim() {
		return nil, fmt.Errorf("%w: %dx%d grid has %d cells, model expects %d",
			preprocess.ErrGridSize, g.Size(), g.Size(), len(input), bundle.InDim())
	}

	var opts []nn.RunOption
	if e.cfg.Observer != nil {
		opts = append(opts, nn.WithObserver(e.cfg.Observer))
	}
	result, err := nn.Run(input, bundle, opts...)
	if err != nil {
		return nil, err
	}

	selected, err := edges.Select(result.Activations, bundle, result.Probabilities, e.cfg.Edges)
	if err != nil {
		return nil, err
	}

	return &Prediction{Result: *result, Edges: selected}, nil
}
