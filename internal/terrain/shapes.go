package terrain

import "math"

// Flat returns a heightmap with every node at level.
func Flat(size int, level float64) (*Heightmap, error) {
	h, err := New(size)
	if err != nil {
		return nil, err
	}
	for i := range h.Values {
		h.Values[i] = level
	}
	return h, nil
}

// FlatFromElevation builds a flat map whose rendered elevation is
// elevation, i.e. every node holds elevation/heightFactor.
func FlatFromElevation(size int, elevation, heightFactor float64) (*Heightmap, error) {
	if heightFactor == 0 {
		return Flat(size, 0)
	}
	return Flat(size, elevation/heightFactor)
}

// Plane returns a plane tilted about the vertical centre line by angleDeg
// degrees. Heights rise with x for positive angles. The lowest column is
// shifted to 0 and the result is divided by heightFactor so the rendered
// slope matches the requested angle. Angles at or beyond ±90° yield a flat map.
func Plane(size int, angleDeg, heightFactor float64) (*Heightmap, error) {
	h, err := New(size)
	if err != nil {
		return nil, err
	}
	if angleDeg <= -90 || angleDeg >= 90 || heightFactor == 0 {
		return h, nil
	}

	slope := math.Tan(angleDeg * math.Pi / 180)
	mid := float64(size)/2 - 0.5
	lowest := math.Min((0-mid)*slope, (float64(size-1)-mid)*slope)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := (float64(x) - mid) * slope
			h.Values[h.Index(x, y)] = (v - lowest) / heightFactor
		}
	}
	return h, nil
}
