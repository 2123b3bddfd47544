// Command terrainserver serves an interactive terrain session over HTTP:
// generate, erode, undo and redo, and fetch height or change colours.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/erosion-lab/internal/api"
	"github.com/talgya/erosion-lab/internal/config"
	"github.com/talgya/erosion-lab/internal/engine"
	"github.com/talgya/erosion-lab/internal/persistence"
)

func main() {
	cfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fs := flag.NewFlagSet("terrainserver", flag.ExitOnError)
	cfg.Bind(fs)
	generate := fs.Bool("generate", true, "generate a terrain at startup")
	fs.Parse(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	// ── Journal ───────────────────────────────────────────────────────
	var journal *persistence.Journal
	if cfg.DBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
		journal, err = persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		slog.Info("journal opened", "path", cfg.DBPath)

		if last, err := journal.GetMeta("last_noise_seed"); err == nil {
			slog.Info("previous session", "last_noise_seed", last)
		}
	}

	// ── Session ───────────────────────────────────────────────────────
	sess := engine.NewSession(cfg.Options())
	if *generate {
		res, err := sess.Generate()
		if err != nil {
			slog.Error("initial generation failed", "error", err)
			os.Exit(1)
		}
		if journal != nil {
			if err := journal.SaveMeta("last_noise_seed", fmt.Sprint(res.Seed)); err != nil {
				slog.Warn("save meta failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("EROSION_ADMIN_KEY not set, POST endpoints are open")
	}
	apiServer := api.NewServer(sess)
	apiServer.Journal = journal
	apiServer.Port = cfg.Port
	apiServer.AdminKey = cfg.AdminKey
	apiServer.Iterations = cfg.Iterations
	apiServer.ErodeRate = cfg.ErodeRate
	apiServer.ErodeWindow = cfg.ErodeWindow
	apiServer.MaxStreams = cfg.MaxStreams
	srv := apiServer.Start()

	fmt.Printf("\nTerrain lab ready: %dx%d nodes, %s droplets per erosion.\n",
		cfg.MapSize, cfg.MapSize, humanize.Comma(int64(cfg.Iterations)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)

	// ── Shutdown ──────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fmt.Println("Terrain lab stopped.")
}
