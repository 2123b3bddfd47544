package erosion

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/erosion-lab/internal/terrain"
)

// Simulator owns the random stream and brush cache across erosion passes.
// Successive passes continue the same stream unless reset or reseeded,
// so several short runs accumulate like one long run.
type Simulator struct {
	Params Params
	Seed   int64

	rng     *rand.Rand
	rngSeed int64
	brushes Cache
}

// NewSimulator creates a simulator with the given parameters and seed.
func NewSimulator(p Params, seed int64) *Simulator {
	return &Simulator{Params: p, Seed: seed}
}

// Erode runs iterations droplets over h in place. resetSeed restarts the
// stream from Seed; so does changing Seed between calls.
func (s *Simulator) Erode(h *terrain.Heightmap, iterations int, resetSeed bool) (Stats, error) {
	if resetSeed || s.rng == nil || s.rngSeed != s.Seed {
		s.rng = rand.New(rand.NewSource(s.Seed))
		s.rngSeed = s.Seed
	}
	return Erode(h, s.Brush(h.Size), s.Params, s.rng, iterations)
}

// Brush returns the cached brush for mapSize and the current radius.
func (s *Simulator) Brush(mapSize int) *Brush {
	before := s.brushes.Builds()
	b := s.brushes.Get(mapSize, s.Params.Radius)
	if s.brushes.Builds() != before {
		slog.Debug("erosion brush built", "map_size", mapSize, "radius", s.Params.Radius)
	}
	return b
}

// BrushBuilds reports how many brushes this simulator has constructed.
func (s *Simulator) BrushBuilds() int { return s.brushes.Builds() }
