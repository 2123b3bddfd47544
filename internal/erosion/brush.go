package erosion

import "math"

// Brush lists, for every node of a mapSize×mapSize grid, the nodes within
// Radius that share an erosion event and the fraction each receives.
// Weights fall off linearly from the centre and sum to 1 per node.
// A Brush is read-only after construction and may be shared.
type Brush struct {
	MapSize int
	Radius  int
	Indices [][]int
	Weights [][]float64
}

type brushPoint struct {
	dx, dy int
	weight float64
}

// NewBrush precomputes the erosion brush. Cost is O(mapSize²·radius²).
func NewBrush(mapSize, radius int) *Brush {
	if mapSize < 0 {
		mapSize = 0
	}
	n := mapSize * mapSize
	b := &Brush{
		MapSize: mapSize,
		Radius:  radius,
		Indices: make([][]int, n),
		Weights: make([][]float64, n),
	}

	disc := discPoints(radius)
	// Points with dx² + dy² < r² never reach further than r-1 from the centre.
	reach := radius - 1

	// Interior nodes see the whole disc, so one normalized copy serves all of them.
	var interiorWeights []float64
	if len(disc) > 0 {
		sum := 0.0
		for _, p := range disc {
			sum += p.weight
		}
		interiorWeights = make([]float64, len(disc))
		for i, p := range disc {
			interiorWeights[i] = p.weight / sum
		}
	}

	for i := 0; i < n; i++ {
		cx := i % mapSize
		cy := i / mapSize

		if cx-reach >= 0 && cx+reach < mapSize && cy-reach >= 0 && cy+reach < mapSize {
			indices := make([]int, len(disc))
			for j, p := range disc {
				indices[j] = (cy+p.dy)*mapSize + cx + p.dx
			}
			b.Indices[i] = indices
			b.Weights[i] = interiorWeights
			continue
		}

		// Border node: clip the disc to the map and renormalize.
		var indices []int
		var weights []float64
		sum := 0.0
		for _, p := range disc {
			x, y := cx+p.dx, cy+p.dy
			if x < 0 || x >= mapSize || y < 0 || y >= mapSize {
				continue
			}
			indices = append(indices, y*mapSize+x)
			weights = append(weights, p.weight)
			sum += p.weight
		}
		for j := range weights {
			weights[j] /= sum
		}
		b.Indices[i] = indices
		b.Weights[i] = weights
	}

	return b
}

// discPoints walks [-radius, radius]² in row order and keeps offsets
// strictly inside the circle, weighted 1 - distance/radius.
func discPoints(radius int) []brushPoint {
	if radius <= 0 {
		return nil
	}
	r2 := radius * radius
	var pts []brushPoint
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			sq := dx*dx + dy*dy
			if sq >= r2 {
				continue
			}
			pts = append(pts, brushPoint{
				dx:     dx,
				dy:     dy,
				weight: 1 - math.Sqrt(float64(sq))/float64(radius),
			})
		}
	}
	return pts
}

// Matches reports whether the brush was built for mapSize and radius.
func (b *Brush) Matches(mapSize, radius int) bool {
	return b != nil && b.MapSize == mapSize && b.Radius == radius
}

// Cache holds the most recently built brush and rebuilds it only when the
// map size or radius changes.
type Cache struct {
	brush  *Brush
	builds int
}

// Get returns a brush for mapSize and radius, reusing the previous one when possible.
func (c *Cache) Get(mapSize, radius int) *Brush {
	if !c.brush.Matches(mapSize, radius) {
		c.brush = NewBrush(mapSize, radius)
		c.builds++
	}
	return c.brush
}

// Builds returns how many times the cache constructed a brush.
func (c *Cache) Builds() int { return c.builds }
