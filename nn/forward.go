package nn

import (
	"fmt"
)

type runConfig struct {
	observer Observer
}

// RunOption customises a single call to Run.
type RunOption func(*runConfig)

// WithObserver reports every layer's output to o as the pass proceeds.
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) { c.observer = o }
}

// Run propagates input through every layer of b and returns the prediction together
// with the full activation trace.
//
// Activations[0] is a copy of input and Activations[i+1] is the output of layer i.
// ReLU is applied after every layer except the last, so the final entry holds raw
// logits. The predicted class is the argmax of the logits; probabilities are their
// softmax.
func Run(input []float64, b *Bundle, opts ...RunOption) (*Result, error) {
	if b == nil || len(b.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrCorruptModel)
	}
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	activations := make([][]float64, 0, len(b.Layers)+1)
	activations = append(activations, cloneVec(input))

	data := activations[0]
	last := len(b.Layers) - 1
	for i := range b.Layers {
		layer := &b.Layers[i]
		out, err := layer.forward(data, i == last)
		if err != nil {
			return nil, err
		}
		activations = append(activations, out)
		notifyObserver(cfg.observer, i, layer.Tag, out, i == last)
		data = out
	}

	return &Result{
		Predicted:     Argmax(data),
		Probabilities: Softmax(data),
		Activations:   activations,
		Bundle:        b,
	}, nil
}
