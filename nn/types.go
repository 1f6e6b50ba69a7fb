package nn

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrCorruptModel reports a model whose file parsed but whose shapes do not line up.
var ErrCorruptModel = errors.New("corrupt model")

// LayerSpec is the raw description of one dense layer as read from a weight file.
type LayerSpec struct {
	Tag    int         // Numeric tag from the weight key, e.g. 3 in "model.3.weight"
	Weight [][]float64 // [outDim][inDim]
	Bias   []float64   // [outDim]
}

// Layer is a dense layer ready for inference.
type Layer struct {
	Tag     int
	Weight  *mat.Dense // [outDim x inDim], as stored in the weight file
	WeightT *mat.Dense // [inDim x outDim], computed once at construction
	Bias    []float64  // [outDim]
}

// InDim returns the number of inputs the layer expects.
func (l *Layer) InDim() int {
	_, c := l.Weight.Dims()
	return c
}

// OutDim returns the number of units in the layer.
func (l *Layer) OutDim() int {
	r, _ := l.Weight.Dims()
	return r
}

// Params returns the number of weights plus biases.
func (l *Layer) Params() int {
	return l.InDim()*l.OutDim() + len(l.Bias)
}

// Bundle is an ordered, immutable stack of dense layers.
type Bundle struct {
	Layers []Layer
}

// NewBundle validates each layer, orders the layers by tag and precomputes transposes.
func NewBundle(specs ...LayerSpec) (*Bundle, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrCorruptModel)
	}

	ordered := make([]LayerSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tag < ordered[j].Tag })

	b := &Bundle{Layers: make([]Layer, 0, len(ordered))}
	for i, spec := range ordered {
		if i > 0 && ordered[i-1].Tag == spec.Tag {
			return nil, fmt.Errorf("%w: duplicate layer tag %d", ErrCorruptModel, spec.Tag)
		}
		layer, err := newLayer(spec)
		if err != nil {
			return nil, err
		}
		b.Layers = append(b.Layers, layer)
	}
	return b, nil
}

func newLayer(spec LayerSpec) (Layer, error) {
	outDim := len(spec.Weight)
	if outDim == 0 {
		return Layer{}, fmt.Errorf("%w: layer %d has an empty weight matrix", ErrCorruptModel, spec.Tag)
	}
	inDim := len(spec.Weight[0])
	if inDim == 0 {
		return Layer{}, fmt.Errorf("%w: layer %d has zero-width weight rows", ErrCorruptModel, spec.Tag)
	}
	if len(spec.Bias) != outDim {
		return Layer{}, fmt.Errorf("%w: layer %d has %d weight rows but %d biases",
			ErrCorruptModel, spec.Tag, outDim, len(spec.Bias))
	}

	data := make([]float64, 0, outDim*inDim)
	for r, row := range spec.Weight {
		if len(row) != inDim {
			return Layer{}, fmt.Errorf("%w: layer %d weight row %d has %d columns, expected %d",
				ErrCorruptModel, spec.Tag, r, len(row), inDim)
		}
		data = append(data, row...)
	}

	w := mat.NewDense(outDim, inDim, data)
	bias := make([]float64, outDim)
	copy(bias, spec.Bias)

	return Layer{
		Tag:     spec.Tag,
		Weight:  w,
		WeightT: mat.DenseCopyOf(w.T()),
		Bias:    bias,
	}, nil
}

// Tags returns the layer tags in execution order.
func (b *Bundle) Tags() []int {
	tags := make([]int, len(b.Layers))
	for i := range b.Layers {
		tags[i] = b.Layers[i].Tag
	}
	return tags
}

// InDim returns the input size expected by the first layer.
func (b *Bundle) InDim() int {
	return b.Layers[0].InDim()
}

// OutDim returns the number of classes produced by the last layer.
func (b *Bundle) OutDim() int {
	return b.Layers[len(b.Layers)-1].OutDim()
}

// Result is the outcome of one forward pass.
type Result struct {
	Predicted     int         `json:"prediction"`
	Probabilities []float64   `json:"probabilities"`
	Activations   [][]float64 `json:"activations"` // [0] = input, last = raw logits
	Bundle        *Bundle     `json:"-"`
}

// Logits returns the raw output of the last layer.
func (r *Result) Logits() []float64 {
	return r.Activations[len(r.Activations)-1]
}
