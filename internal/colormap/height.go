package colormap

import (
	"image/color"

	"github.com/talgya/erosion-lab/internal/terrain"
)

// Height colours every node by its min/max normalized height. A perfectly
// flat map has no range to normalize by, so each node is evaluated at its
// raw height instead.
func Height(h *terrain.Heightmap, g Gradient) []color.RGBA {
	colors := make([]color.RGBA, h.Len())
	lo, hi, ok := h.Range()
	if !ok {
		return colors
	}
	for i, v := range h.Values {
		if hi == lo {
			colors[i] = g.Evaluate(v)
			continue
		}
		colors[i] = g.Evaluate((v - lo) / (hi - lo))
	}
	return colors
}
