// Package preprocess turns a hand-drawn intensity grid into the flat input vector a
// digit classifier expects, optionally re-centring the stroke the way MNIST digits are
// framed: the drawing is cropped to its bounding box, scaled so its longer side spans
// Target cells, and padded back to the full grid.
//
// Cell values are expected in [0,1]; they are not validated here.
package preprocess

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSize is the side length of the grids the bundled models were trained on.
const DefaultSize = 28

// ErrNotSquare reports an empty, ragged or non-square grid.
var ErrNotSquare = errors.New("grid is not square")

// ErrGridSize reports a grid whose cell count does not match the model input.
var ErrGridSize = errors.New("grid size does not match model input")

// Grid is a square array of intensities indexed [y][x].
type Grid [][]float64

// NewGrid returns an all-zero n×n grid.
func NewGrid(n int) Grid {
	g := make(Grid, n)
	for y := range g {
		g[y] = make([]float64, n)
	}
	return g
}

// Size returns the side length of the grid.
func (g Grid) Size() int { return len(g) }

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = append([]float64(nil), row...)
	}
	return out
}

// Check verifies the grid is non-empty and square.
func Check(g Grid) error {
	if len(g) == 0 {
		return fmt.Errorf("%w: empty", ErrNotSquare)
	}
	for y, row := range g {
		if len(row) != len(g) {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrNotSquare, y, len(row), len(g))
		}
	}
	return nil
}

// Flatten reshapes g row-major: out[y*N+x] == g[y][x].
func Flatten(g Grid) []float64 {
	n := 0
	for _, row := range g {
		n += len(row)
	}
	out := make([]float64, 0, n)
	for _, row := range g {
		out = append(out, row...)
	}
	return out
}

// Options controls centring.
type Options struct {
	Threshold float64 // cells strictly above this count as drawn
	Target    int     // side of the box the digit is scaled into
}

// DefaultOptions returns the MNIST framing: 0.1 threshold, 20-cell box.
func DefaultOptions() Options {
	return Options{Threshold: 0.1, Target: 20}
}

// CenterAndFlatten centres g and flattens the result.
func CenterAndFlatten(g Grid, opts Options) []float64 {
	return Flatten(Center(g, opts))
}

// Center returns a new grid of the same size with the drawn region cropped, scaled
// with nearest-neighbour sampling so its longer side spans opts.Target cells, and
// padded evenly (odd remainders go to the bottom and right). A grid with nothing above
// the threshold is returned as an unchanged copy. g must pass Check.
func Center(g Grid, opts Options) Grid {
	n := len(g)
	top, bottom, left, right, ok := boundingBox(g, opts.Threshold)
	if !ok {
		return g.Clone()
	}

	width := right - left + 1
	height := bottom - top + 1

	target := opts.Target
	if target > n {
		target = n
	}
	if target < 1 {
		target = 1
	}

	scale := math.Min(float64(target)/float64(width), float64(target)/float64(height))
	newW := clampInt(int(math.Round(float64(width)*scale)), 1, n)
	newH := clampInt(int(math.Round(float64(height)*scale)), 1, n)

	topPad := (n - newH) / 2
	leftPad := (n - newW) / 2

	out := NewGrid(n)
	for y := 0; y < newH; y++ {
		srcY := top + clampInt(int(math.Floor(float64(y)/scale)), 0, height-1)
		for x := 0; x < newW; x++ {
			srcX := left + clampInt(int(math.Floor(float64(x)/scale)), 0, width-1)
			out[topPad+y][leftPad+x] = g[srcY][srcX]
		}
	}
	return out
}

// boundingBox finds the tight box around cells above threshold.
func boundingBox(g Grid, threshold float64) (top, bottom, left, right int, ok bool) {
	top, left = len(g), len(g)
	bottom, right = -1, -1
	for y, row := range g {
		for x, v := range row {
			if v <= threshold {
				continue
			}
			if y < top {
				top = y
			}
			if y > bottom {
				bottom = y
			}
			if x < left {
				left = x
			}
			if x > right {
				right = x
			}
		}
	}
	if top > bottom || left > right {
		return 0, 0, 0, 0, false
	}
	return top, bottom, left, right, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
