// Package erosion simulates hydraulic erosion with independent sediment
// carrying droplets. Each droplet walks downhill over a shared heightmap,
// eroding through a precomputed brush and depositing at its own cell.
package erosion

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/erosion-lab/internal/terrain"
)

// ErrBrushMismatch is returned when a brush was built for a different map size.
var ErrBrushMismatch = errors.New("erosion: brush does not match map size")

// Stats summarizes the height moved by a batch of droplets.
// Eroded - Deposited == Discarded up to rounding: sediment still carried
// when a droplet dies or leaves the map is dropped, not redeposited.
type Stats struct {
	Droplets  int     `json:"droplets"`
	Steps     int     `json:"steps"`
	Eroded    float64 `json:"eroded"`
	Deposited float64 `json:"deposited"`
	Discarded float64 `json:"discarded"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Droplets += o.Droplets
	s.Steps += o.Steps
	s.Eroded += o.Eroded
	s.Deposited += o.Deposited
	s.Discarded += o.Discarded
}

type heightAndGradient struct {
	height    float64
	gradientX float64
	gradientY float64
}

// Erode simulates iterations droplets on h in place. Droplets run strictly
// one after another: each sees every change made by the previous ones.
// Maps smaller than 2×2 have no interior cell and are left untouched.
func Erode(h *terrain.Heightmap, brush *Brush, p Params, rng *rand.Rand, iterations int) (Stats, error) {
	var stats Stats
	if brush == nil || brush.MapSize != h.Size {
		return stats, fmt.Errorf("%w: map %d, brush %v", ErrBrushMismatch, h.Size, brushSize(brush))
	}
	mapSize := h.Size
	if mapSize < 2 {
		return stats, nil
	}

	for iteration := 0; iteration < iterations; iteration++ {
		// Spawn on an integer node in [0, mapSize-1) so all four corners exist.
		posX := float64(rng.Intn(mapSize - 1))
		posY := float64(rng.Intn(mapSize - 1))
		stats.Add(simulateDroplet(h.Values, mapSize, brush, p, posX, posY))
	}
	return stats, nil
}

func brushSize(b *Brush) any {
	if b == nil {
		return "nil"
	}
	return b.MapSize
}

// simulateDroplet runs one droplet from (posX, posY) until it stalls,
// leaves the interior or reaches MaxLifetime.
func simulateDroplet(values []float64, mapSize int, brush *Brush, p Params, posX, posY float64) Stats {
	stats := Stats{Droplets: 1}
	limit := float64(mapSize - 1)
	if posX < 0 || posX >= limit || posY < 0 || posY >= limit {
		return stats
	}

	dirX, dirY := 0.0, 0.0
	speed := p.InitialSpeed
	water := p.InitialWater
	sediment := 0.0

	for lifetime := 0; lifetime < p.MaxLifetime; lifetime++ {
		nodeX := int(posX)
		nodeY := int(posY)
		dropletIndex := nodeY*mapSize + nodeX

		// Offset inside the cell: (0,0) is the NW node, (1,1) the SE node.
		cellOffsetX := posX - float64(nodeX)
		cellOffsetY := posY - float64(nodeY)

		hg := heightAndGradientAt(values, mapSize, posX, posY)

		dirX = dirX*p.Inertia - hg.gradientX*(1-p.Inertia)
		dirY = dirY*p.Inertia - hg.gradientY*(1-p.Inertia)
		if l := math.Sqrt(dirX*dirX + dirY*dirY); l != 0 {
			dirX /= l
			dirY /= l
		}
		// One node per step regardless of speed.
		posX += dirX
		posY += dirY

		if (dirX == 0 && dirY == 0) || posX < 0 || posX >= limit || posY < 0 || posY >= limit {
			break
		}

		newHeight := heightAndGradientAt(values, mapSize, posX, posY).height
		deltaHeight := newHeight - hg.height

		capacity := math.Max(-deltaHeight*speed*water*p.SedimentCapacityFactor, p.MinSedimentCapacity)

		if sediment > capacity || deltaHeight > 0 {
			var amount float64
			if deltaHeight > 0 {
				amount = math.Min(deltaHeight, p.SedimentCapacityFactor)
			} else {
				amount = (sediment - capacity) * p.DepositSpeed
			}
			sediment -= amount
			stats.Deposited += amount

			// Point deposit on the four corners of the cell just left, so
			// small pits fill precisely instead of being smeared by the brush.
			values[dropletIndex] += amount * (1 - cellOffsetX) * (1 - cellOffsetY)
			values[dropletIndex+1] += amount * cellOffsetX * (1 - cellOffsetY)
			values[dropletIndex+mapSize] += amount * (1 - cellOffsetX) * cellOffsetY
			values[dropletIndex+mapSize+1] += amount * cellOffsetX * cellOffsetY
		} else {
			// Never remove more than the drop just traversed, or the droplet digs holes behind itself.
			amount := math.Min((capacity-sediment)*p.ErodeSpeed, -deltaHeight)

			indices := brush.Indices[dropletIndex]
			weights := brush.Weights[dropletIndex]
			for j, node := range indices {
				weighted := amount * weights[j]
				delta := weighted
				if values[node] < weighted {
					delta = values[node]
				}
				values[node] -= delta
				sediment += delta
				stats.Eroded += delta
			}
		}

		// Radicand clamped: a steep climb at low speed would otherwise be NaN.
		speed = math.Sqrt(math.Max(0, speed*speed+deltaHeight*p.Gravity))
		water *= 1 - p.EvaporateSpeed
		stats.Steps++
	}

	stats.Discarded = sediment
	return stats
}

// heightAndGradientAt bilinearly interpolates height and slope from the
// four nodes of the cell containing (posX, posY).
func heightAndGradientAt(nodes []float64, mapSize int, posX, posY float64) heightAndGradient {
	coordX := int(posX)
	coordY := int(posY)
	x := posX - float64(coordX)
	y := posY - float64(coordY)

	nw := coordY*mapSize + coordX
	heightNW := nodes[nw]
	heightNE := nodes[nw+1]
	heightSW := nodes[nw+mapSize]
	heightSE := nodes[nw+mapSize+1]

	return heightAndGradient{
		height:    heightNW*(1-x)*(1-y) + heightNE*x*(1-y) + heightSW*(1-x)*y + heightSE*x*y,
		gradientX: (heightNE-heightNW)*(1-y) + (heightSE-heightSW)*y,
		gradientY: (heightSW-heightNW)*(1-x) + (heightSE-heightNE)*x,
	}
}
