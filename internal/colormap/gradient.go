// Package colormap turns heightmaps and height differences into per-node
// colours through caller supplied gradients, and reports legend extrema.
package colormap

import (
	"image/color"
	"math"
	"sort"
)

// Gradient maps a scalar in [0, 1] to a colour.
type Gradient interface {
	Evaluate(t float64) color.RGBA
}

// Stop is one colour key of a linear gradient.
type Stop struct {
	Pos   float64
	Color color.RGBA
}

// Linear interpolates between sorted stops, clamping outside the first and last.
type Linear struct {
	stops []Stop
}

// NewLinear builds a gradient from stops in any order.
func NewLinear(stops ...Stop) *Linear {
	sorted := append([]Stop(nil), stops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })
	return &Linear{stops: sorted}
}

// Evaluate returns the colour at t. NaN evaluates like 0.
func (g *Linear) Evaluate(t float64) color.RGBA {
	if len(g.stops) == 0 {
		return color.RGBA{}
	}
	if math.IsNaN(t) {
		t = 0
	}
	first, last := g.stops[0], g.stops[len(g.stops)-1]
	if t <= first.Pos {
		return first.Color
	}
	if t >= last.Pos {
		return last.Color
	}
	for i := 1; i < len(g.stops); i++ {
		hi := g.stops[i]
		if t > hi.Pos {
			continue
		}
		lo := g.stops[i-1]
		span := hi.Pos - lo.Pos
		if span <= 0 {
			return hi.Color
		}
		return lerp(lo.Color, hi.Color, (t-lo.Pos)/span)
	}
	return last.Color
}

func lerp(a, b color.RGBA, f float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

// Preset gradients.
var (
	Hypsometric Gradient = NewLinear(
		Stop{0.00, rgb(38, 97, 62)},
		Stop{0.30, rgb(110, 160, 80)},
		Stop{0.55, rgb(214, 200, 128)},
		Stop{0.80, rgb(150, 110, 80)},
		Stop{1.00, rgb(245, 245, 245)},
	)
	Greyscale Gradient = NewLinear(
		Stop{0, rgb(0, 0, 0)},
		Stop{1, rgb(255, 255, 255)},
	)
	Loss Gradient = NewLinear(
		Stop{0, rgb(255, 224, 210)},
		Stop{1, rgb(178, 24, 43)},
	)
	Gain Gradient = NewLinear(
		Stop{0, rgb(209, 229, 240)},
		Stop{1, rgb(33, 102, 172)},
	)
)
