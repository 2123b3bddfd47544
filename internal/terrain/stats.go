package terrain

import "golang.org/x/exp/constraints"

// MinMax folds a slice into its minimum and maximum. The first element
// seeds both; ok is false for an empty slice.
func MinMax[T constraints.Float](values []T) (lo, hi T, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

// Range returns the lowest and highest node of the heightmap.
func (h *Heightmap) Range() (lo, hi float64, ok bool) {
	return MinMax(h.Values)
}

// Normalize maps v from [lo, hi] onto [0, 1]. A zero-width range maps to 0.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
