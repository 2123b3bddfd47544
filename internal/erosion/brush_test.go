package erosion

import (
	"math"
	"slices"
	"testing"
)

func TestBrushWeightsSumToOne(t *testing.T) {
	cases := []struct{ size, radius int }{
		{1, 2}, {2, 2}, {8, 2}, {16, 3}, {5, 8}, {12, 1},
	}
	for _, tc := range cases {
		b := NewBrush(tc.size, tc.radius)
		if len(b.Indices) != tc.size*tc.size || len(b.Weights) != tc.size*tc.size {
			t.Fatalf("size %d radius %d: brush has %d entries", tc.size, tc.radius, len(b.Indices))
		}
		for i := range b.Indices {
			if len(b.Indices[i]) == 0 {
				t.Fatalf("size %d radius %d: node %d has no brush points", tc.size, tc.radius, i)
			}
			if len(b.Indices[i]) != len(b.Weights[i]) {
				t.Fatalf("node %d: %d indices but %d weights", i, len(b.Indices[i]), len(b.Weights[i]))
			}
			sum := 0.0
			for j, idx := range b.Indices[i] {
				if idx < 0 || idx >= tc.size*tc.size {
					t.Fatalf("node %d lists out of range neighbour %d", i, idx)
				}
				if b.Weights[i][j] <= 0 {
					t.Fatalf("node %d has non-positive weight %v", i, b.Weights[i][j])
				}
				sum += b.Weights[i][j]
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("size %d radius %d: node %d weights sum to %v", tc.size, tc.radius, i, sum)
			}
		}
	}
}

// naiveBrush recomputes every node without the interior shortcut.
func naiveBrush(mapSize, radius int) ([][]int, [][]float64) {
	n := mapSize * mapSize
	indices := make([][]int, n)
	weights := make([][]float64, n)
	for i := 0; i < n; i++ {
		cx, cy := i%mapSize, i/mapSize
		sum := 0.0
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				sq := dx*dx + dy*dy
				if sq >= radius*radius {
					continue
				}
				x, y := cx+dx, cy+dy
				if x < 0 || x >= mapSize || y < 0 || y >= mapSize {
					continue
				}
				w := 1 - math.Sqrt(float64(sq))/float64(radius)
				indices[i] = append(indices[i], y*mapSize+x)
				weights[i] = append(weights[i], w)
				sum += w
			}
		}
		for j := range weights[i] {
			weights[i][j] /= sum
		}
	}
	return indices, weights
}

func TestBrushInteriorShortcutMatchesFullRecompute(t *testing.T) {
	for _, radius := range []int{1, 2, 3, 5} {
		b := NewBrush(14, radius)
		indices, weights := naiveBrush(14, radius)
		for i := range indices {
			if !slices.Equal(b.Indices[i], indices[i]) {
				t.Fatalf("radius %d node %d: indices %v, want %v", radius, i, b.Indices[i], indices[i])
			}
			if !slices.Equal(b.Weights[i], weights[i]) {
				t.Fatalf("radius %d node %d: weights differ", radius, i)
			}
		}
	}
}

func TestBrushCentreWeighsMost(t *testing.T) {
	b := NewBrush(9, 3)
	centre := 4*9 + 4
	for j, idx := range b.Indices[centre] {
		if idx == centre {
			for k, w := range b.Weights[centre] {
				if k != j && w >= b.Weights[centre][j] {
					t.Fatalf("neighbour weight %v not below centre weight %v", w, b.Weights[centre][j])
				}
			}
			return
		}
	}
	t.Fatal("centre node missing from its own brush")
}

func TestBrushRadiusOneIsPointBrush(t *testing.T) {
	b := NewBrush(4, 1)
	for i := range b.Indices {
		if len(b.Indices[i]) != 1 || b.Indices[i][0] != i || b.Weights[i][0] != 1 {
			t.Fatalf("node %d: radius 1 brush should only hold itself, got %v %v", i, b.Indices[i], b.Weights[i])
		}
	}
}

func TestCacheRebuildsOnlyOnChange(t *testing.T) {
	var c Cache
	a := c.Get(16, 3)
	if c.Get(16, 3) != a {
		t.Fatal("unchanged size and radius should reuse the brush")
	}
	if c.Builds() != 1 {
		t.Fatalf("builds = %d, want 1", c.Builds())
	}
	if c.Get(16, 4) == a {
		t.Fatal("radius change should rebuild")
	}
	c.Get(32, 4)
	if c.Builds() != 3 {
		t.Fatalf("builds = %d, want 3", c.Builds())
	}
}
