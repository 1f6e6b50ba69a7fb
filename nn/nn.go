// Package nn runs a stack of dense layers on a single input vector and keeps every
// intermediate activation so callers can inspect what the network did.
//
// A Bundle is built once from the layer weights (usually by package weights) and is
// read-only afterwards:
//   - Layers execute in ascending tag order (tags need not be contiguous)
//   - Each layer computes bias + W·x using a transpose prepared at construction
//   - ReLU follows every layer except the last, which yields raw logits
//
// Example usage:
//
//	bundle, _ := nn.NewBundle(specs...)
//	result, err := nn.Run(input, bundle)
//	if err != nil {
//		// errors.Is(err, nn.ErrCorruptModel)
//	}
//	fmt.Println(result.Predicted, result.Probabilities)
//
// Run shares no mutable state between calls and may be used from many goroutines
// against the same Bundle.
package nn
