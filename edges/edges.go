// Package edges picks the connections worth drawing between the hidden and output
// layers of a forward pass. Where they are drawn is left to the renderer.
package edges

import (
	"fmt"
	"math"

	"github.com/openfluke/digitscope/nn"
)

// Config holds the selection knobs.
type Config struct {
	Threshold float64 // source, target and weight magnitudes must all exceed this
	MaxNodes  int     // layer pairs with a wider layer are skipped; 0 disables the cutoff
}

// DefaultConfig returns a 0.001 threshold and a 64-node cutoff.
func DefaultConfig() Config {
	return Config{Threshold: 0.001, MaxNodes: 64}
}

// Edge is one significant connection. Layers are activation-trace indices, so the
// weight belongs to bundle layer FromLayer.
type Edge struct {
	FromLayer        int     `json:"from_layer"`
	FromNode         int     `json:"from_node"`
	ToLayer          int     `json:"to_layer"`
	ToNode           int     `json:"to_node"`
	Weight           float64 `json:"weight"`
	SourceActivation float64 `json:"source_activation"`
	TargetActivation float64 `json:"target_activation"`
}

// Select returns the edges between consecutive hidden layers and from the last hidden
// layer to the output, whose source activation, target activation and weight all
// exceed cfg.Threshold in magnitude. The output layer is represented by probabilities
// rather than logits. Edges are ordered by layer, then source node, then target node.
func Select(activations [][]float64, b *nn.Bundle, probabilities []float64, cfg Config) ([]Edge, error) {
	if b == nil || len(activations) != len(b.Layers)+1 {
		return nil, fmt.Errorf("%w: activation trace does not match the model", nn.ErrCorruptModel)
	}
	if len(probabilities) != b.OutDim() {
		return nil, fmt.Errorf("%w: %d probabilities for %d outputs", nn.ErrCorruptModel, len(probabilities), b.OutDim())
	}

	outIdx := len(activations) - 1
	var edges []Edge
	for from := 1; from < outIdx; from++ {
		to := from + 1
		src := activations[from]
		tgt := activations[to]
		if to == outIdx {
			tgt = probabilities
		}

		layer := &b.Layers[from]
		if len(src) != layer.InDim() || len(tgt) != layer.OutDim() {
			return nil, fmt.Errorf("%w: layer %d is %dx%d but activations are %d -> %d",
				nn.ErrCorruptModel, layer.Tag, layer.OutDim(), layer.InDim(), len(src), len(tgt))
		}
		if cfg.MaxNodes > 0 && (len(src) > cfg.MaxNodes || len(tgt) > cfg.MaxNodes) {
			continue
		}

		for i, a := range src {
			if math.Abs(a) <= cfg.Threshold {
				continue
			}
			for j, z := range tgt {
				if math.Abs(z) <= cfg.Threshold {
					continue
				}
				w := layer.Weight.At(j, i)
				if math.Abs(w) <= cfg.Threshold {
					continue
				}
				edges = append(edges, Edge{
					FromLayer:        from,
					FromNode:         i,
					ToLayer:          to,
					ToNode:           j,
					Weight:           w,
					SourceActivation: a,
					TargetActivation: z,
				})
			}
		}
	}
	return edges, nil
}
