package edges

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	excitatory = colorful.Color{R: 66.0 / 255, G: 135.0 / 255, B: 245.0 / 255}
	inhibitory = colorful.Color{R: 209.0 / 255, G: 75.0 / 255, B: 78.0 / 255}
)

const (
	minOpacity = 0.25
	maxOpacity = 0.75
)

// Style is how an edge should be painted.
type Style struct {
	Color   colorful.Color
	Opacity float64
}

// Hex returns the colour as #rrggbb.
func (s Style) Hex() string {
	return s.Color.Hex()
}

// Contribution is the signal the edge carries: weight times source activation.
func (e Edge) Contribution() float64 {
	return e.Weight * e.SourceActivation
}

// Style colours the edge blue when its contribution is non-negative and red otherwise,
// with opacity growing from 0.25 to 0.75 as |contribution| approaches 1.
func (e Edge) Style() Style {
	c := e.Contribution()
	col := excitatory
	if c < 0 {
		col = inhibitory
	}
	return Style{
		Color:   col,
		Opacity: minOpacity + (maxOpacity-minOpacity)*math.Min(math.Abs(c), 1),
	}
}

// NodeShade maps an activation or probability to a grey level, clamped to [0,1].
func NodeShade(v float64) colorful.Color {
	v = math.Max(0, math.Min(1, v))
	g := math.Round(v*255) / 255
	return colorful.Color{R: g, G: g, B: g}
}
