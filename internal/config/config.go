// Package config assembles runtime settings from defaults, EROSION_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/talgya/erosion-lab/internal/engine"
	"github.com/talgya/erosion-lab/internal/erosion"
	"github.com/talgya/erosion-lab/internal/noise"
)

// Config holds every tunable of the CLI and the server.
type Config struct {
	MapSize        int
	HeightFactor   float64
	DetectionLimit float64
	Noise          noise.Config
	Erosion        erosion.Params
	ErosionSeed    int64
	Iterations     int // Droplets per erosion run
	BatchSize      int

	DBPath   string
	Port     int
	AdminKey string // Empty disables admin-only endpoints

	ErodeRate   int           // Erosion requests allowed per ErodeWindow
	ErodeWindow time.Duration // Rate limit window
	MaxStreams  int           // Concurrent websocket progress clients

	LogLevel slog.Level
}

// Default returns the standard settings.
func Default() *Config {
	opts := engine.DefaultOptions()
	return &Config{
		MapSize:        opts.MapSize,
		HeightFactor:   opts.HeightFactor,
		DetectionLimit: opts.DetectionLimit,
		Noise:          opts.Noise,
		Erosion:        opts.Erosion,
		ErosionSeed:    opts.ErosionSeed,
		Iterations:     50000,
		BatchSize:      opts.BatchSize,
		DBPath:         "data/erosion.db",
		Port:           8080,
		ErodeRate:      30,
		ErodeWindow:    time.Minute,
		MaxStreams:     16,
		LogLevel:       slog.LevelInfo,
	}
}

// FromEnv returns the defaults overlaid with any EROSION_* variables
// found through lookup (usually os.LookupEnv). Every malformed variable
// is reported.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	e := envReader{lookup: lookup}

	e.int("EROSION_MAP_SIZE", &c.MapSize)
	e.float("EROSION_HEIGHT_FACTOR", &c.HeightFactor)
	e.float("EROSION_DETECTION_LIMIT", &c.DetectionLimit)

	e.int64("EROSION_NOISE_SEED", &c.Noise.Seed)
	e.bool("EROSION_RANDOMIZE", &c.Noise.Randomize)
	e.int("EROSION_OCTAVES", &c.Noise.Octaves)
	e.float("EROSION_PERSISTENCE", &c.Noise.Persistence)
	e.float("EROSION_LACUNARITY", &c.Noise.Lacunarity)
	e.float("EROSION_FREQUENCY", &c.Noise.Frequency)
	e.parse("EROSION_NOISE_SOURCE", func(v string) error {
		kind, err := noise.ParseSourceKind(v)
		c.Noise.Source = kind
		return err
	})

	e.int64("EROSION_SEED", &c.ErosionSeed)
	e.int("EROSION_ITERATIONS", &c.Iterations)
	e.int("EROSION_BATCH_SIZE", &c.BatchSize)
	e.int("EROSION_RADIUS", &c.Erosion.Radius)
	e.float("EROSION_INERTIA", &c.Erosion.Inertia)
	e.float("EROSION_ERODE_SPEED", &c.Erosion.ErodeSpeed)
	e.float("EROSION_DEPOSIT_SPEED", &c.Erosion.DepositSpeed)
	e.float("EROSION_EVAPORATE_SPEED", &c.Erosion.EvaporateSpeed)
	e.int("EROSION_MAX_LIFETIME", &c.Erosion.MaxLifetime)
	e.float("EROSION_SEDIMENT_CAPACITY_FACTOR", &c.Erosion.SedimentCapacityFactor)
	e.float("EROSION_MIN_SEDIMENT_CAPACITY", &c.Erosion.MinSedimentCapacity)
	e.float("EROSION_GRAVITY", &c.Erosion.Gravity)
	e.float("EROSION_INITIAL_WATER", &c.Erosion.InitialWater)
	e.float("EROSION_INITIAL_SPEED", &c.Erosion.InitialSpeed)

	e.str("EROSION_DB_PATH", &c.DBPath)
	e.int("EROSION_PORT", &c.Port)
	e.str("EROSION_ADMIN_KEY", &c.AdminKey)
	e.int("EROSION_ERODE_RATE", &c.ErodeRate)
	e.parse("EROSION_ERODE_WINDOW", func(v string) (err error) {
		c.ErodeWindow, err = time.ParseDuration(v)
		return err
	})
	e.int("EROSION_MAX_STREAMS", &c.MaxStreams)
	e.parse("EROSION_LOG_LEVEL", func(v string) error {
		return c.LogLevel.UnmarshalText([]byte(v))
	})

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return c, nil
}

// Bind attaches the configuration to the provided FlagSet. Current field
// values become the flag defaults, so call it after FromEnv.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.MapSize, "size", c.MapSize, "heightmap side length in nodes")
	fs.Float64Var(&c.HeightFactor, "height-factor", c.HeightFactor, "rendered elevation per heightmap unit")
	fs.Float64Var(&c.DetectionLimit, "detection-limit", c.DetectionLimit, "smallest rendered change shown in change maps")

	fs.Int64Var(&c.Noise.Seed, "noise-seed", c.Noise.Seed, "noise seed")
	fs.BoolVar(&c.Noise.Randomize, "randomize", c.Noise.Randomize, "draw a fresh noise seed on every generation")
	fs.IntVar(&c.Noise.Octaves, "octaves", c.Noise.Octaves, "noise octaves")
	fs.Float64Var(&c.Noise.Persistence, "persistence", c.Noise.Persistence, "amplitude multiplier per octave")
	fs.Float64Var(&c.Noise.Lacunarity, "lacunarity", c.Noise.Lacunarity, "frequency multiplier per octave")
	fs.Float64Var(&c.Noise.Frequency, "frequency", c.Noise.Frequency, "first octave frequency")
	fs.Float64Var(&c.Noise.OffsetX, "offset-x", c.Noise.OffsetX, "noise sample offset along x")
	fs.Float64Var(&c.Noise.OffsetY, "offset-y", c.Noise.OffsetY, "noise sample offset along y")
	fs.Func("noise", fmt.Sprintf("coherent noise source, perlin or simplex (default %q)", c.Noise.Source), func(v string) error {
		kind, err := noise.ParseSourceKind(v)
		c.Noise.Source = kind
		return err
	})

	fs.Int64Var(&c.ErosionSeed, "seed", c.ErosionSeed, "erosion seed")
	fs.IntVar(&c.Iterations, "iterations", c.Iterations, "droplets per erosion run")
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "droplets between progress reports")
	fs.IntVar(&c.Erosion.Radius, "radius", c.Erosion.Radius, "erosion brush radius")
	fs.Float64Var(&c.Erosion.Inertia, "inertia", c.Erosion.Inertia, "droplet inertia")
	fs.Float64Var(&c.Erosion.ErodeSpeed, "erode-speed", c.Erosion.ErodeSpeed, "erosion speed")
	fs.Float64Var(&c.Erosion.DepositSpeed, "deposit-speed", c.Erosion.DepositSpeed, "deposit speed")
	fs.Float64Var(&c.Erosion.EvaporateSpeed, "evaporate-speed", c.Erosion.EvaporateSpeed, "evaporation speed")
	fs.IntVar(&c.Erosion.MaxLifetime, "lifetime", c.Erosion.MaxLifetime, "maximum droplet steps")
	fs.Float64Var(&c.Erosion.SedimentCapacityFactor, "capacity-factor", c.Erosion.SedimentCapacityFactor, "sediment capacity multiplier")
	fs.Float64Var(&c.Erosion.MinSedimentCapacity, "min-capacity", c.Erosion.MinSedimentCapacity, "sediment capacity floor")
	fs.Float64Var(&c.Erosion.Gravity, "gravity", c.Erosion.Gravity, "droplet acceleration downhill")
	fs.Float64Var(&c.Erosion.InitialWater, "initial-water", c.Erosion.InitialWater, "water carried by a new droplet")
	fs.Float64Var(&c.Erosion.InitialSpeed, "initial-speed", c.Erosion.InitialSpeed, "speed of a new droplet")

	fs.StringVar(&c.DBPath, "db", c.DBPath, "run journal path (empty disables the journal)")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	fs.IntVar(&c.ErodeRate, "erode-rate", c.ErodeRate, "erosion requests allowed per window")
	fs.DurationVar(&c.ErodeWindow, "erode-window", c.ErodeWindow, "erosion rate limit window")
	fs.IntVar(&c.MaxStreams, "max-streams", c.MaxStreams, "concurrent progress stream clients")
	fs.TextVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.MapSize < 2 {
		errs = append(errs, fmt.Errorf("map size %d must be at least 2", c.MapSize))
	}
	if c.HeightFactor <= 0 {
		errs = append(errs, fmt.Errorf("height factor %v must be positive", c.HeightFactor))
	}
	if c.DetectionLimit < 0 {
		errs = append(errs, fmt.Errorf("detection limit %v must not be negative", c.DetectionLimit))
	}
	if err := c.Noise.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations %d must not be negative", c.Iterations))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size %d must be at least 1", c.BatchSize))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ErodeRate < 1 || c.ErodeWindow <= 0 {
		errs = append(errs, fmt.Errorf("erode rate %d per %v must be positive", c.ErodeRate, c.ErodeWindow))
	}
	if c.MaxStreams < 0 {
		errs = append(errs, fmt.Errorf("max streams %d must not be negative", c.MaxStreams))
	}
	if err := c.Erosion.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Options converts the configuration into session options.
func (c *Config) Options() engine.Options {
	return engine.Options{
		MapSize:        c.MapSize,
		HeightFactor:   c.HeightFactor,
		DetectionLimit: c.DetectionLimit,
		Noise:          c.Noise,
		Erosion:        c.Erosion,
		ErosionSeed:    c.ErosionSeed,
		BatchSize:      c.BatchSize,
	}
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) parse(key string, fn func(string) error) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	if err := fn(v); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
	}
}

func (e *envReader) str(key string, dst *string) {
	e.parse(key, func(v string) error { *dst = v; return nil })
}

func (e *envReader) int(key string, dst *int) {
	e.parse(key, func(v string) (err error) { *dst, err = strconv.Atoi(v); return err })
}

func (e *envReader) int64(key string, dst *int64) {
	e.parse(key, func(v string) (err error) { *dst, err = strconv.ParseInt(v, 10, 64); return err })
}

func (e *envReader) float(key string, dst *float64) {
	e.parse(key, func(v string) (err error) { *dst, err = strconv.ParseFloat(v, 64); return err })
}

func (e *envReader) bool(key string, dst *bool) {
	e.parse(key, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return err })
}
