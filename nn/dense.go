package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Affine computes bias[j] + sum_k x[k]*wT[k][j] for every output unit j.
// wT is the transposed weight matrix [inDim x outDim], so each input scales one
// contiguous row and inputs that are exactly zero are skipped.
func Affine(x []float64, wT *mat.Dense, bias []float64) ([]float64, error) {
	inDim, outDim := wT.Dims()
	if len(x) != inDim {
		return nil, fmt.Errorf("%w: input has %d values, weights expect %d", ErrCorruptModel, len(x), inDim)
	}
	if len(bias) != outDim {
		return nil, fmt.Errorf("%w: bias has %d values, weights produce %d", ErrCorruptModel, len(bias), outDim)
	}

	out := make([]float64, outDim)
	copy(out, bias)
	for k, v := range x {
		if v == 0 {
			continue
		}
		floats.AddScaled(out, v, wT.RawRowView(k))
	}
	return out, nil
}

// forward applies one layer to x, with ReLU unless the layer yields logits.
func (l *Layer) forward(x []float64, logits bool) ([]float64, error) {
	if len(x) != l.InDim() {
		return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous activation has %d",
			ErrCorruptModel, l.Tag, l.InDim(), len(x))
	}
	out, err := Affine(x, l.WeightT, l.Bias)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", l.Tag, err)
	}
	if logits {
		return out, nil
	}
	return ReLU(out), nil
}
