// Package terrain provides the square heightmap grid shared by generation,
// erosion, history and colouring.
// Cells are stored row-major: index = y*Size + x.
package terrain

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch is returned when a value slice is not Size*Size long.
	ErrSizeMismatch = errors.New("terrain: value count does not match map size")
	// ErrInvalidSize is returned for a non-positive map size.
	ErrInvalidSize = errors.New("terrain: map size must be positive")
)

// Heightmap holds the elevation of every grid node.
// Values are unitless: noise units after generation, sediment-adjusted
// units after erosion. Rendering multiplies them by a height factor.
type Heightmap struct {
	Size   int       `json:"size"`
	Values []float64 `json:"values"`
}

// New allocates a zeroed heightmap of size×size nodes.
func New(size int) (*Heightmap, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Heightmap{Size: size, Values: make([]float64, size*size)}, nil
}

// FromValues wraps an existing slice. The slice is owned by the heightmap afterwards.
func FromValues(size int, values []float64) (*Heightmap, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if len(values) != size*size {
		return nil, fmt.Errorf("%w: size %d needs %d values, got %d", ErrSizeMismatch, size, size*size, len(values))
	}
	return &Heightmap{Size: size, Values: values}, nil
}

// Index returns the linear index for node (x, y).
func (h *Heightmap) Index(x, y int) int { return y*h.Size + x }

// At returns the height at node (x, y), or 0 when out of bounds.
func (h *Heightmap) At(x, y int) float64 {
	if !h.InBounds(x, y) {
		return 0
	}
	return h.Values[h.Index(x, y)]
}

// InBounds reports whether (x, y) addresses a node of the grid.
func (h *Heightmap) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < h.Size && y < h.Size
}

// Len returns the number of nodes.
func (h *Heightmap) Len() int { return len(h.Values) }

// Clone returns a deep copy. Snapshots held by a history are never edited
// in place, so every edit starts from a clone.
func (h *Heightmap) Clone() *Heightmap {
	values := make([]float64, len(h.Values))
	copy(values, h.Values)
	return &Heightmap{Size: h.Size, Values: values}
}

// SameShape reports whether two heightmaps can be compared cell by cell.
func (h *Heightmap) SameShape(o *Heightmap) bool {
	return h != nil && o != nil && h.Size == o.Size && len(h.Values) == len(o.Values)
}

// Sum returns the total height of all nodes.
func (h *Heightmap) Sum() float64 {
	total := 0.0
	for _, v := range h.Values {
		total += v
	}
	return total
}

// Elevations scales every node by heightFactor, producing the vertical
// coordinates a mesh builder would use.
func (h *Heightmap) Elevations(heightFactor float64) []float64 {
	out := make([]float64, len(h.Values))
	for i, v := range h.Values {
		out[i] = v * heightFactor
	}
	return out
}

// FromElevations recovers a heightmap from mesh vertex elevations by
// undoing the height factor. Used when edits made directly on rendered
// geometry are folded back into the canonical representation.
func FromElevations(size int, elevations []float64, heightFactor float64) (*Heightmap, error) {
	if heightFactor == 0 {
		return nil, errors.New("terrain: height factor must be non-zero")
	}
	values := make([]float64, len(elevations))
	for i, e := range elevations {
		values[i] = e / heightFactor
	}
	return FromValues(size, values)
}

// String returns a summary of the heightmap.
func (h *Heightmap) String() string {
	return fmt.Sprintf("Heightmap(size=%d, nodes=%d)", h.Size, h.Len())
}
