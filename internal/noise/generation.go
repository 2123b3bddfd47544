// Package noise synthesizes normalized heightmaps from multi-octave
// fractal noise.
package noise

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/erosion-lab/internal/entropy"
	"github.com/talgya/erosion-lab/internal/terrain"
)

var (
	ErrInvalidSize    = errors.New("noise: map size must be at least 1")
	ErrInvalidOctaves = fmt.Errorf("noise: octave count must be in [1, %d]", MaxOctaves)
)

// MaxOctaves bounds Config.Octaves. Octaves past this add nothing visible
// at any supported map size.
const MaxOctaves = 16

// octaveOffsetRange bounds the per-octave random sample offset: [-range, range).
const octaveOffsetRange = 100000

// Config holds noise synthesis parameters.
type Config struct {
	Seed        int64      `json:"seed"`
	Randomize   bool       `json:"randomize"`   // Draw a fresh seed on every Generate call
	Octaves     int        `json:"octaves"`     // Number of layered noise samples per cell
	Persistence float64    `json:"persistence"` // Amplitude multiplier per octave (0.0–1.0)
	Lacunarity  float64    `json:"lacunarity"`  // Frequency multiplier per octave
	Frequency   float64    `json:"frequency"`   // Frequency of the first octave
	OffsetX     float64    `json:"offset_x"`
	OffsetY     float64    `json:"offset_y"`
	Source      SourceKind `json:"source"`
}

// DefaultConfig returns the standard terrain noise settings.
func DefaultConfig() Config {
	return Config{
		Seed:        0,
		Octaves:     7,
		Persistence: 0.4,
		Lacunarity:  2,
		Frequency:   2,
		Source:      SourcePerlin,
	}
}

// Validate reports every out-of-range setting. Generate only rejects an
// octave count it cannot allocate; callers taking untrusted input run this.
func (c Config) Validate() error {
	var errs []error
	if c.Octaves < 1 || c.Octaves > MaxOctaves {
		errs = append(errs, fmt.Errorf("octaves %d: %w", c.Octaves, ErrInvalidOctaves))
	}
	if !(c.Frequency > 0) || math.IsInf(c.Frequency, 0) {
		errs = append(errs, fmt.Errorf("frequency %v must be positive and finite", c.Frequency))
	}
	if !(c.Persistence >= 0 && c.Persistence <= 1) {
		errs = append(errs, fmt.Errorf("persistence %v outside [0, 1]", c.Persistence))
	}
	if !(c.Lacunarity > 0) || math.IsInf(c.Lacunarity, 0) {
		errs = append(errs, fmt.Errorf("lacunarity %v must be positive and finite", c.Lacunarity))
	}
	if math.IsNaN(c.OffsetX) || math.IsInf(c.OffsetX, 0) || math.IsNaN(c.OffsetY) || math.IsInf(c.OffsetY, 0) {
		errs = append(errs, fmt.Errorf("offset (%v, %v) must be finite", c.OffsetX, c.OffsetY))
	}
	return errors.Join(errs...)
}

// Result is a synthesized heightmap with the seed that produced it and
// the raw accumulator range used for normalization.
type Result struct {
	Heightmap *terrain.Heightmap
	Seed      int64
	Min, Max  float64
}

// Generate builds a mapSize×mapSize heightmap normalized to [0, 1].
// A perfectly flat accumulator (Min == Max) yields an all-zero map.
func Generate(mapSize int, cfg Config) (Result, error) {
	if mapSize < 1 {
		return Result{}, ErrInvalidSize
	}
	if cfg.Octaves < 1 || cfg.Octaves > MaxOctaves {
		return Result{}, ErrInvalidOctaves
	}

	seed := cfg.Seed
	if cfg.Randomize {
		seed = entropy.Seed()
	}

	src, err := NewSource(cfg.Source, seed)
	if err != nil {
		return Result{}, err
	}
	return synthesize(src, mapSize, seed, cfg)
}

// GenerateFrom is Generate over a caller-supplied coherent noise source.
// cfg.Source is ignored; cfg.Randomize is honoured for the octave offsets.
func GenerateFrom(src Source, mapSize int, cfg Config) (Result, error) {
	if mapSize < 1 {
		return Result{}, ErrInvalidSize
	}
	if cfg.Octaves < 1 || cfg.Octaves > MaxOctaves {
		return Result{}, ErrInvalidOctaves
	}
	seed := cfg.Seed
	if cfg.Randomize {
		seed = entropy.Seed()
	}
	return synthesize(src, mapSize, seed, cfg)
}

func synthesize(src Source, mapSize int, seed int64, cfg Config) (Result, error) {
	offsets := octaveOffsets(seed, cfg)
	raw := make([]float64, mapSize*mapSize)
	size := float64(mapSize)

	for y := 0; y < mapSize; y++ {
		for x := 0; x < mapSize; x++ {
			amplitude := 1.0
			frequency := cfg.Frequency
			total := 0.0

			for _, off := range offsets {
				// Sample inside the unit square scaled by frequency so lattice
				// repetition never shows up within one octave.
				sx := float64(x)/size*frequency + off[0]
				sy := float64(y)/size*frequency + off[1]
				total += src.Eval2(sx, sy) * amplitude

				amplitude *= cfg.Persistence
				frequency *= cfg.Lacunarity
			}

			raw[y*mapSize+x] = total
		}
	}

	lo, hi, _ := terrain.MinMax(raw)
	for i, v := range raw {
		raw[i] = terrain.Normalize(v, lo, hi)
	}
	if lo == hi {
		slog.Debug("flat noise field, normalized to zero", "value", lo)
	}

	h, err := terrain.FromValues(mapSize, raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Heightmap: h, Seed: seed, Min: lo, Max: hi}, nil
}

// octaveOffsets derives one sample offset per octave from the seed.
func octaveOffsets(seed int64, cfg Config) [][2]float64 {
	rng := rand.New(rand.NewSource(seed))
	offsets := make([][2]float64, cfg.Octaves)
	for i := range offsets {
		offsets[i][0] = float64(rng.Intn(2*octaveOffsetRange)-octaveOffsetRange) + cfg.OffsetX
		offsets[i][1] = float64(rng.Intn(2*octaveOffsetRange)-octaveOffsetRange) + cfg.OffsetY
	}
	return offsets
}
