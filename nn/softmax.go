package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax converts logits into probabilities. The maximum logit is subtracted before
// exponentiating so large inputs do not overflow.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return []float64{}
	}

	maxLogit := floats.Max(logits)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// Argmax returns the first index holding the maximum value, or -1 for an empty slice.
func Argmax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}
