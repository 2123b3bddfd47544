package engine

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/talgya/erosion-lab/internal/colormap"
	"github.com/talgya/erosion-lab/internal/erosion"
	"github.com/talgya/erosion-lab/internal/history"
	"github.com/talgya/erosion-lab/internal/noise"
	"github.com/talgya/erosion-lab/internal/terrain"
)

var (
	// ErrNoTerrain is returned by operations that need a current heightmap
	// before anything has been generated.
	ErrNoTerrain = errors.New("engine: no terrain generated yet")
	// ErrUnknownColorMode is returned for an unrecognised colour mode.
	ErrUnknownColorMode = errors.New("engine: unknown colour mode")
	// ErrNegativeIterations is returned when an erosion run asks for fewer than zero droplets.
	ErrNegativeIterations = errors.New("engine: iteration count must not be negative")
)

// ColorMode selects the base gradient for height colours and for the
// unchanged nodes of a change map.
type ColorMode string

const (
	ColorHypsometric ColorMode = "height"
	ColorGreyscale   ColorMode = "greyscale"
)

// ParseColorMode maps a mode name to a ColorMode. An empty string selects
// hypsometric colouring.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case "", ColorHypsometric:
		return ColorHypsometric, nil
	case ColorGreyscale:
		return ColorGreyscale, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColorMode, s)
}

// Options configures a Session.
type Options struct {
	MapSize        int
	HeightFactor   float64 // Rendered elevation per heightmap unit
	DetectionLimit float64 // Smallest rendered change shown in change maps
	Noise          noise.Config
	Erosion        erosion.Params
	ErosionSeed    int64
	BatchSize      int
}

// DefaultOptions returns the standard session settings.
func DefaultOptions() Options {
	return Options{
		MapSize:        255,
		HeightFactor:   45,
		DetectionLimit: 0.05,
		Noise:          noise.DefaultConfig(),
		Erosion:        erosion.DefaultParams(),
		BatchSize:      DefaultBatchSize,
	}
}

// Session holds one terrain being worked on: its snapshot history, the
// saved reference heightmap, and the erosion simulator. A Session is not
// safe for concurrent use; callers serialise access.
type Session struct {
	opts      Options
	sim       *erosion.Simulator
	runner    *Runner
	history   *history.History
	reference *terrain.Heightmap

	noiseSeed int64
	lastRun   erosion.Stats
	totalRun  erosion.Stats

	hypsometric colormap.Gradient
	greyscale   colormap.Gradient
	gain        colormap.Gradient
	loss        colormap.Gradient
}

// NewSession creates an empty session. Nothing is generated until
// Generate, Flat or Plane is called.
func NewSession(opts Options) *Session {
	runner := NewRunner()
	if opts.BatchSize > 0 {
		runner.BatchSize = opts.BatchSize
	}
	return &Session{
		opts:        opts,
		sim:         erosion.NewSimulator(opts.Erosion, opts.ErosionSeed),
		runner:      runner,
		history:     history.New(),
		hypsometric: colormap.Hypsometric,
		greyscale:   colormap.Greyscale,
		gain:        colormap.Gain,
		loss:        colormap.Loss,
	}
}

// Options returns the session's configuration.
func (s *Session) Options() Options { return s.opts }

// SetProgress installs a callback invoked after every erosion batch.
func (s *Session) SetProgress(fn func(Progress)) { s.runner.OnProgress = fn }

// SetNoise replaces the noise settings used by later generations.
func (s *Session) SetNoise(cfg noise.Config) { s.opts.Noise = cfg }

// SetErosion replaces the erosion parameters and seed used by later runs.
func (s *Session) SetErosion(p erosion.Params, seed int64) {
	s.opts.Erosion = p
	s.opts.ErosionSeed = seed
	s.sim.Params = p
	s.sim.Seed = seed
}

// Generate synthesizes a new noise heightmap, pushes it, and makes it the
// reference for total change.
func (s *Session) Generate() (noise.Result, error) {
	res, err := s.generate()
	if err != nil {
		return res, err
	}
	s.reference = res.Heightmap
	return res, nil
}

// RegenerateKeepReference synthesizes a new heightmap but keeps the
// previous reference, so total change compares against the old terrain.
func (s *Session) RegenerateKeepReference() (noise.Result, error) {
	return s.generate()
}

func (s *Session) generate() (noise.Result, error) {
	res, err := noise.Generate(s.opts.MapSize, s.opts.Noise)
	if err != nil {
		return res, fmt.Errorf("generate terrain: %w", err)
	}
	s.noiseSeed = res.Seed
	s.history.Push(res.Heightmap)
	slog.Info("terrain generated",
		"map_size", s.opts.MapSize,
		"seed", res.Seed,
		"source", s.opts.Noise.Source,
		"octaves", s.opts.Noise.Octaves,
	)
	return res, nil
}

// Erode runs iterations droplets on a copy of the current heightmap and
// pushes the result. Every call restarts the erosion stream from the
// session's erosion seed. A cancelled run pushes nothing.
func (s *Session) Erode(ctx context.Context, iterations int) (erosion.Stats, error) {
	if iterations < 0 {
		return erosion.Stats{}, ErrNegativeIterations
	}
	cur, ok := s.history.Current()
	if !ok {
		return erosion.Stats{}, ErrNoTerrain
	}
	work := cur.Clone()
	stats, err := s.runner.Run(ctx, s.sim, work, iterations, true)
	if err != nil {
		return stats, fmt.Errorf("erode: %w", err)
	}
	s.history.Push(work)
	s.lastRun = stats
	s.totalRun.Add(stats)
	return stats, nil
}

// Undo moves back one snapshot. It reports false at the oldest snapshot.
func (s *Session) Undo() bool {
	_, ok := s.history.Undo()
	return ok
}

// Redo moves forward one snapshot. It reports false at the newest snapshot.
func (s *Session) Redo() bool {
	_, ok := s.history.Redo()
	return ok
}

// SaveReference makes the current heightmap the total-change baseline.
func (s *Session) SaveReference() error {
	cur, ok := s.history.Current()
	if !ok {
		return ErrNoTerrain
	}
	s.reference = cur
	return nil
}

// RestoreReference pushes a copy of the reference heightmap.
func (s *Session) RestoreReference() error {
	if s.reference == nil {
		return ErrNoTerrain
	}
	s.history.Push(s.reference.Clone())
	return nil
}

// Flat pushes a flat heightmap at the given rendered elevation.
func (s *Session) Flat(elevation float64) error {
	h, err := terrain.FlatFromElevation(s.opts.MapSize, elevation, s.opts.HeightFactor)
	if err != nil {
		return fmt.Errorf("flat terrain: %w", err)
	}
	s.history.Push(h)
	return nil
}

// Plane pushes a plane tilted by angleDeg degrees.
func (s *Session) Plane(angleDeg float64) error {
	h, err := terrain.Plane(s.opts.MapSize, angleDeg, s.opts.HeightFactor)
	if err != nil {
		return fmt.Errorf("plane terrain: %w", err)
	}
	s.history.Push(h)
	return nil
}

// Formula pushes a heightmap evaluated from a height expression over
// normalized node coordinates.
func (s *Session) Formula(src string) error {
	h, err := terrain.Formula(s.opts.MapSize, src)
	if err != nil {
		return fmt.Errorf("formula terrain: %w", err)
	}
	s.history.Push(h)
	return nil
}

// ApplyEdit pushes a heightmap rebuilt from rendered vertex elevations,
// as produced by an external editing tool.
func (s *Session) ApplyEdit(elevations []float64) error {
	h, err := terrain.FromElevations(s.opts.MapSize, elevations, s.opts.HeightFactor)
	if err != nil {
		return fmt.Errorf("apply edit: %w", err)
	}
	s.history.Push(h)
	return nil
}

// Current returns the heightmap at the history cursor. Callers must not
// modify it.
func (s *Session) Current() (*terrain.Heightmap, bool) {
	return s.history.Current()
}

// Reference returns the saved reference heightmap, if any.
func (s *Session) Reference() (*terrain.Heightmap, bool) {
	return s.reference, s.reference != nil
}

func (s *Session) base(mode ColorMode) (colormap.Gradient, error) {
	switch mode {
	case ColorHypsometric, "":
		return s.hypsometric, nil
	case ColorGreyscale:
		return s.greyscale, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColorMode, mode)
}

// HeightColors colours the current heightmap through the mode's gradient.
func (s *Session) HeightColors(mode ColorMode) ([]color.RGBA, error) {
	g, err := s.base(mode)
	if err != nil {
		return nil, err
	}
	cur, ok := s.history.Current()
	if !ok {
		return nil, ErrNoTerrain
	}
	return colormap.Height(cur, g), nil
}

// IterativeChange colours the change from the previous snapshot to the
// current one. Unchanged nodes keep their height colour. At the oldest
// snapshot there is nothing to compare and every node keeps its height colour.
func (s *Session) IterativeChange(mode ColorMode) (colormap.Result, error) {
	cur, ok := s.history.Current()
	if !ok {
		return colormap.Result{}, ErrNoTerrain
	}
	prev, ok := s.history.Previous()
	if !ok {
		prev = cur
	}
	return s.change(prev, cur, mode)
}

// TotalChange colours the change from the reference to the current snapshot.
func (s *Session) TotalChange(mode ColorMode) (colormap.Result, error) {
	cur, ok := s.history.Current()
	if !ok {
		return colormap.Result{}, ErrNoTerrain
	}
	ref := s.reference
	if ref == nil {
		ref = cur
	}
	return s.change(ref, cur, mode)
}

func (s *Session) change(before, after *terrain.Heightmap, mode ColorMode) (colormap.Result, error) {
	fallback, err := s.HeightColors(mode)
	if err != nil {
		return colormap.Result{}, err
	}
	return colormap.Change(before, after, colormap.ChangeOptions{
		DetectionLimit: s.opts.DetectionLimit,
		HeightFactor:   s.opts.HeightFactor,
		Gain:           s.gain,
		Loss:           s.loss,
	}, fallback)
}

// Status is a snapshot of session state for reporting.
type Status struct {
	MapSize      int           `json:"map_size"`
	HistoryLen   int           `json:"history_len"`
	Position     int           `json:"position"`
	CanUndo      bool          `json:"can_undo"`
	CanRedo      bool          `json:"can_redo"`
	HasReference bool          `json:"has_reference"`
	NoiseSeed    int64         `json:"noise_seed"`
	ErosionSeed  int64         `json:"erosion_seed"`
	MinHeight    float64       `json:"min_height"`
	MaxHeight    float64       `json:"max_height"`
	LastRun      erosion.Stats `json:"last_run"`
	TotalRun     erosion.Stats `json:"total_run"`
	BrushBuilds  int           `json:"brush_builds"`
	Time         time.Time     `json:"time"`
}

// Status reports the session state.
func (s *Session) Status() Status {
	st := Status{
		MapSize:      s.opts.MapSize,
		HistoryLen:   s.history.Len(),
		Position:     s.history.Position(),
		CanUndo:      s.history.CanUndo(),
		CanRedo:      s.history.CanRedo(),
		HasReference: s.reference != nil,
		NoiseSeed:    s.noiseSeed,
		ErosionSeed:  s.sim.Seed,
		LastRun:      s.lastRun,
		TotalRun:     s.totalRun,
		BrushBuilds:  s.sim.BrushBuilds(),
		Time:         time.Now().UTC(),
	}
	if cur, ok := s.history.Current(); ok {
		st.MinHeight, st.MaxHeight, _ = cur.Range()
	}
	return st
}
