package nn

// ReLU returns max(0, v) for every element of x as a new slice.
func ReLU(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}
