// Command terrainsim generates a terrain, erodes it in one or more passes
// and writes PNG previews of the result and of the change it underwent.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/erosion-lab/internal/colormap"
	"github.com/talgya/erosion-lab/internal/config"
	"github.com/talgya/erosion-lab/internal/engine"
	"github.com/talgya/erosion-lab/internal/erosion"
	"github.com/talgya/erosion-lab/internal/persistence"
)

func main() {
	cfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fs := flag.NewFlagSet("terrainsim", flag.ExitOnError)
	cfg.Bind(fs)
	outDir := fs.String("out", "out", "directory for PNG previews")
	passes := fs.Int("passes", 1, "erosion passes, each of -iterations droplets")
	mode := fs.String("mode", "height", "base colouring, height or greyscale")
	fs.Parse(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	colorMode, err := engine.ParseColorMode(*mode)
	if err != nil {
		slog.Error("invalid colour mode", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *outDir, *passes, colorMode); err != nil {
		slog.Error("terrainsim failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, outDir string, passes int, mode engine.ColorMode) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var journal *persistence.Journal
	if cfg.DBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
		j, err := persistence.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer j.Close()
		journal = j
		slog.Info("journal opened", "path", cfg.DBPath)
	}

	sess := engine.NewSession(cfg.Options())
	sess.SetProgress(func(p engine.Progress) {
		slog.Debug("erosion progress",
			"done", humanize.Comma(int64(p.Done)),
			"total", humanize.Comma(int64(p.Total)),
			"percent", fmt.Sprintf("%.0f", p.Fraction()*100),
		)
	})

	start := time.Now()
	res, err := sess.Generate()
	if err != nil {
		return err
	}
	record(journal, persistence.KindGenerate, res.Seed, cfg.MapSize, cfg.Noise, erosion.Stats{}, time.Since(start))

	heights, err := sess.HeightColors(mode)
	if err != nil {
		return err
	}
	if err := writePNG(filepath.Join(outDir, "terrain.png"), cfg.MapSize, heights); err != nil {
		return err
	}

	var total erosion.Stats
	for pass := 1; pass <= passes; pass++ {
		passStart := time.Now()
		stats, err := sess.Erode(ctx, cfg.Iterations)
		if err != nil {
			return fmt.Errorf("pass %d: %w", pass, err)
		}
		total.Add(stats)
		record(journal, persistence.KindErode, cfg.ErosionSeed, cfg.MapSize, cfg.Erosion, stats, time.Since(passStart))
		slog.Info("erosion pass complete",
			"pass", pass,
			"droplets", humanize.Comma(int64(stats.Droplets)),
			"eroded", fmt.Sprintf("%.4f", stats.Eroded),
			"deposited", fmt.Sprintf("%.4f", stats.Deposited),
		)
	}

	eroded, err := sess.HeightColors(mode)
	if err != nil {
		return err
	}
	change, err := sess.TotalChange(mode)
	if err != nil {
		return err
	}
	legendImg := colormap.LegendImage(max(cfg.MapSize, 320), change.Legend, cfg.HeightFactor, colormap.Loss, colormap.Gain)

	var g errgroup.Group
	g.Go(func() error { return writePNG(filepath.Join(outDir, "eroded.png"), cfg.MapSize, eroded) })
	g.Go(func() error { return writePNG(filepath.Join(outDir, "change.png"), cfg.MapSize, change.Colors) })
	g.Go(func() error { return writeImage(filepath.Join(outDir, "legend.png"), legendImg) })
	if err := g.Wait(); err != nil {
		return err
	}

	legend := change.Legend.Rounded()
	fmt.Printf("\nNoise seed %d, %s droplets over %d pass(es) in %s.\n",
		res.Seed, humanize.Comma(int64(total.Droplets)), passes, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Loss %.2f to %.2f, gain %.2f to %.2f (heightmap units).\n",
		legend.MinLoss, legend.MaxLoss, legend.MinGain, legend.MaxGain)
	fmt.Printf("Previews written to %s\n", outDir)
	return nil
}

func writePNG(path string, size int, colors []color.RGBA) error {
	img, err := colormap.Image(size, colors)
	if err != nil {
		return err
	}
	return writeImage(path, img)
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func record(j *persistence.Journal, kind string, seed int64, mapSize int, params any, stats erosion.Stats, elapsed time.Duration) {
	if j == nil {
		return
	}
	run, err := persistence.NewRun(kind, seed, mapSize, params, stats, elapsed)
	if err == nil {
		err = j.RecordRun(run)
	}
	if err != nil {
		slog.Warn("journal record failed", "kind", kind, "error", err)
	}
}
