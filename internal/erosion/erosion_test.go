package erosion

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/talgya/erosion-lab/internal/noise"
	"github.com/talgya/erosion-lab/internal/terrain"
)

func testTerrain(t *testing.T, size int, seed int64) *terrain.Heightmap {
	t.Helper()
	cfg := noise.DefaultConfig()
	cfg.Seed = seed
	res, err := noise.Generate(size, cfg)
	if err != nil {
		t.Fatalf("noise: %v", err)
	}
	return res.Heightmap
}

func TestErodeDeterministicWithReset(t *testing.T) {
	base := testTerrain(t, 48, 11)

	a := base.Clone()
	sim := NewSimulator(DefaultParams(), 5)
	if _, err := sim.Erode(a, 2000, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := base.Clone()
	if _, err := sim.Erode(b, 2000, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(a.Values, b.Values) {
		t.Fatal("same seed, map and params with reset should reproduce the same output")
	}
	if slices.Equal(a.Values, base.Values) {
		t.Fatal("erosion should change the terrain")
	}

	c := base.Clone()
	other := NewSimulator(DefaultParams(), 6)
	other.Erode(c, 2000, true)
	if slices.Equal(a.Values, c.Values) {
		t.Fatal("different seeds should produce different erosion")
	}
}

func TestErodeContinuesStreamWithoutReset(t *testing.T) {
	base := testTerrain(t, 40, 3)

	whole := base.Clone()
	NewSimulator(DefaultParams(), 21).Erode(whole, 1500, true)

	split := base.Clone()
	sim := NewSimulator(DefaultParams(), 21)
	sim.Erode(split, 700, true)
	sim.Erode(split, 800, false)

	if !slices.Equal(whole.Values, split.Values) {
		t.Fatal("two passes on one stream should equal a single pass")
	}

	// A changed seed restarts the stream even without reset.
	restarted := base.Clone()
	sim.Seed = 22
	sim.Erode(restarted, 1500, false)
	fresh := base.Clone()
	NewSimulator(DefaultParams(), 22).Erode(fresh, 1500, true)
	if !slices.Equal(restarted.Values, fresh.Values) {
		t.Fatal("changing the seed should reinitialize the stream")
	}
}

func TestErodeMassAccounting(t *testing.T) {
	h := testTerrain(t, 32, 8)
	before := h.Sum()

	brush := NewBrush(32, 3)
	rng := rand.New(rand.NewSource(1))
	stats, err := Erode(h, brush, DefaultParams(), rng, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Droplets != 1 {
		t.Fatalf("droplets = %d, want 1", stats.Droplets)
	}

	if diff := (h.Sum() - before) - (stats.Deposited - stats.Eroded); math.Abs(diff) > 1e-9 {
		t.Fatalf("height change does not match deposited - eroded (off by %v)", diff)
	}
	if diff := stats.Eroded - stats.Deposited - stats.Discarded; math.Abs(diff) > 1e-9 {
		t.Fatalf("eroded - deposited should equal discarded sediment (off by %v)", diff)
	}

	// Same accounting across many droplets.
	before = h.Sum()
	stats, _ = Erode(h, brush, DefaultParams(), rng, 3000)
	if diff := (h.Sum() - before) - (stats.Deposited - stats.Eroded); math.Abs(diff) > 1e-7 {
		t.Fatalf("batch height change off by %v", diff)
	}
	if diff := stats.Eroded - stats.Deposited - stats.Discarded; math.Abs(diff) > 1e-7 {
		t.Fatalf("batch sediment accounting off by %v", diff)
	}
	if stats.Eroded <= 0 {
		t.Fatal("droplets on noise terrain should erode something")
	}
}

func TestDropletAtLastNodeDoesNotIndexOutOfBounds(t *testing.T) {
	h := testTerrain(t, 16, 2)
	original := slices.Clone(h.Values)
	brush := NewBrush(16, 2)

	for _, pos := range [][2]float64{{15, 3}, {3, 15}, {15, 15}, {-1, 4}} {
		stats := simulateDroplet(h.Values, 16, brush, DefaultParams(), pos[0], pos[1])
		if stats.Steps != 0 {
			t.Fatalf("droplet at %v should terminate immediately, took %d steps", pos, stats.Steps)
		}
	}
	if !slices.Equal(original, h.Values) {
		t.Fatal("out of range droplets must not touch the map")
	}

	// The last valid spawn row/column is mapSize-2.
	stats := simulateDroplet(h.Values, 16, brush, DefaultParams(), 14, 14)
	if stats.Droplets != 1 {
		t.Fatal("droplet at the edge of the valid range should simulate")
	}
}

func TestErodeNoNaNWithSteepClimbs(t *testing.T) {
	p := DefaultParams()
	p.InitialSpeed = 0
	p.Gravity = 500
	p.Inertia = 0.9
	p.MaxLifetime = 64

	h := testTerrain(t, 32, 4)
	sim := NewSimulator(p, 9)
	if _, err := sim.Erode(h, 4000, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range h.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("node %d became %v", i, v)
		}
	}
}

func TestErodeTinyMapIsNoop(t *testing.T) {
	h, _ := terrain.FromValues(1, []float64{0.5})
	stats, err := NewSimulator(DefaultParams(), 1).Erode(h, 10, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Droplets != 0 || h.Values[0] != 0.5 {
		t.Fatalf("1x1 map should be untouched, stats=%+v", stats)
	}
}

func TestErodeFlatMapStalls(t *testing.T) {
	h, _ := terrain.Flat(16, 0.5)
	stats, err := NewSimulator(DefaultParams(), 1).Erode(h, 100, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Steps != 0 {
		t.Fatalf("droplets on flat terrain have no direction, took %d steps", stats.Steps)
	}
	if h.Sum() != 0.5*256 {
		t.Fatal("flat terrain should not change")
	}
}

func TestErodeRejectsMismatchedBrush(t *testing.T) {
	h, _ := terrain.New(8)
	_, err := Erode(h, NewBrush(16, 2), DefaultParams(), rand.New(rand.NewSource(1)), 1)
	if !errors.Is(err, ErrBrushMismatch) {
		t.Fatalf("expected ErrBrushMismatch, got %v", err)
	}
}

func TestSimulatorReusesBrush(t *testing.T) {
	sim := NewSimulator(DefaultParams(), 1)
	h := testTerrain(t, 16, 1)
	sim.Erode(h, 10, true)
	sim.Erode(h, 10, false)
	if sim.BrushBuilds() != 1 {
		t.Fatalf("brush built %d times, want 1", sim.BrushBuilds())
	}
	sim.Params.Radius = 4
	sim.Erode(h, 10, false)
	if sim.BrushBuilds() != 2 {
		t.Fatalf("radius change should rebuild, builds=%d", sim.BrushBuilds())
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	p := DefaultParams()
	p.Radius = 0
	p.Inertia = 1.5
	p.EvaporateSpeed = -0.1
	p.MaxLifetime = 0
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"radius", "inertia", "evaporate_speed", "max_lifetime"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParamsValidateUpperBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"huge radius", func(p *Params) { p.Radius = 1_000_000 }, "radius"},
		{"radius just over", func(p *Params) { p.Radius = MaxRadius + 1 }, "radius"},
		{"huge lifetime", func(p *Params) { p.MaxLifetime = 1 << 40 }, "max_lifetime"},
		{"NaN inertia", func(p *Params) { p.Inertia = math.NaN() }, "inertia"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tc.want)
			}
		})
	}

	p := DefaultParams()
	p.Radius = MaxRadius
	p.MaxLifetime = MaxLifetime
	if err := p.Validate(); err != nil {
		t.Fatalf("bounds themselves should validate: %v", err)
	}
}
