package noise

import (
	"fmt"
	"math"
	"strings"

	"github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Source is a coherent 2D noise function returning values in [0, 1].
type Source interface {
	Eval2(x, y float64) float64
}

// SourceKind selects the coherent noise behind the fractal sum.
type SourceKind string

const (
	SourcePerlin  SourceKind = "perlin"  // Gradient noise, zero-crossing on integer lattice points
	SourceSimplex SourceKind = "simplex" // OpenSimplex, no lattice artefacts
)

// ParseSourceKind accepts "perlin" or "simplex" (case-insensitive).
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourcePerlin, "":
		return SourcePerlin, nil
	case SourceSimplex:
		return SourceSimplex, nil
	}
	return "", fmt.Errorf("noise: unknown source %q", s)
}

// NewSource builds the coherent noise for kind, seeded deterministically.
func NewSource(kind SourceKind, seed int64) (Source, error) {
	switch kind {
	case SourcePerlin, "":
		return &perlinSource{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	case SourceSimplex:
		return simplexSource{n: opensimplex.NewNormalized(seed)}, nil
	}
	return nil, fmt.Errorf("noise: unknown source %q", kind)
}

// perlinLattice is the period of the go-perlin permutation table.
const perlinLattice = 256

type perlinSource struct {
	p *perlin.Perlin
}

// Eval2 samples a single Perlin octave. Coordinates are wrapped into the
// lattice period first: the table repeats every 256 units, and wrapping
// keeps the sample point non-negative, where the library's cell split is exact.
func (s *perlinSource) Eval2(x, y float64) float64 {
	v := s.p.Noise2D(wrap(x), wrap(y))
	return clamp01((v + 1) / 2)
}

type simplexSource struct {
	n opensimplex.Noise
}

func (s simplexSource) Eval2(x, y float64) float64 {
	return s.n.Eval2(x, y)
}

func wrap(v float64) float64 {
	v = math.Mod(v, perlinLattice)
	if v < 0 {
		v += perlinLattice
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
