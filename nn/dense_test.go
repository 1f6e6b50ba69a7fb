package nn

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestAffine verifies bias + x·W using the transposed weights
func TestAffine(t *testing.T) {
	// W is [2 x 3], so W^T is [3 x 2]
	wT := mat.NewDense(3, 2, []float64{
		1, 4,
		2, 5,
		3, 6,
	})
	out, err := Affine([]float64{1, 0, -1}, wT, []float64{0.5, -0.5})
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{0.5 + 1 - 3, -0.5 + 4 - 6}
	if MaxAbsDiff(out, expected) > 1e-12 {
		t.Errorf("Expected %v, got %v", expected, out)
	}
}

// TestAffineDoesNotAliasBias verifies the bias slice is left untouched
func TestAffineDoesNotAliasBias(t *testing.T) {
	bias := []float64{1, 1}
	wT := mat.NewDense(1, 2, []float64{2, 3})
	if _, err := Affine([]float64{1}, wT, bias); err != nil {
		t.Fatal(err)
	}
	if bias[0] != 1 || bias[1] != 1 {
		t.Errorf("Bias was modified: %v", bias)
	}
}

func TestAffineShapeMismatch(t *testing.T) {
	wT := mat.NewDense(3, 2, nil)
	if _, err := Affine([]float64{1, 2}, wT, []float64{0, 0}); !errors.Is(err, ErrCorruptModel) {
		t.Errorf("Expected ErrCorruptModel for short input, got %v", err)
	}
	if _, err := Affine([]float64{1, 2, 3}, wT, []float64{0}); !errors.Is(err, ErrCorruptModel) {
		t.Errorf("Expected ErrCorruptModel for short bias, got %v", err)
	}
}

func TestReLU(t *testing.T) {
	in := []float64{-2, -0.1, 0, 0.1, 3}
	out := ReLU(in)
	expected := []float64{0, 0, 0, 0.1, 3}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("ReLU[%d]: expected %v, got %v", i, expected[i], out[i])
		}
	}
	if in[0] != -2 {
		t.Error("ReLU modified its input")
	}
}

// TestSoftmax verifies normalisation and shift invariance
func TestSoftmax(t *testing.T) {
	cases := [][]float64{
		{1, 2, 3},
		{0, 0, 0, 0},
		{1000, 1001, 999},
		{-1000, -1000.5},
		{42},
	}
	for _, logits := range cases {
		probs := Softmax(logits)
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("Softmax(%v) sums to %v", logits, sum)
		}

		shifted := make([]float64, len(logits))
		for i, v := range logits {
			shifted[i] = v + 17.25
		}
		if d := MaxAbsDiff(probs, Softmax(shifted)); d > 1e-9 {
			t.Errorf("Softmax(%v) changed by %v under a constant shift", logits, d)
		}
	}

	equal := Softmax([]float64{3, 3, 3, 3})
	for i, p := range equal {
		if math.Abs(p-0.25) > 1e-12 {
			t.Errorf("Equal logits: expected 0.25 at %d, got %v", i, p)
		}
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	if out := Softmax(nil); len(out) != 0 {
		t.Errorf("Expected empty output, got %v", out)
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		in   []float64
		want int
	}{
		{[]float64{0.5, 0.5, 0.3}, 0},
		{[]float64{0.1, 0.9, 0.9}, 1},
		{[]float64{-3, -1, -2}, 1},
		{[]float64{7}, 0},
		{nil, -1},
	}
	for _, tt := range tests {
		if got := Argmax(tt.in); got != tt.want {
			t.Errorf("Argmax(%v): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
