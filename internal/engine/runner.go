// Package engine drives terrain sessions: noise generation, batched
// erosion, snapshot history and change colouring.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/erosion-lab/internal/erosion"
	"github.com/talgya/erosion-lab/internal/terrain"
)

// DefaultBatchSize is the number of droplets simulated between
// cancellation checks and progress callbacks.
const DefaultBatchSize = 5000

// Progress reports how far an erosion run has advanced.
type Progress struct {
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Stats   erosion.Stats `json:"stats"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Fraction returns completed work in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// Runner splits an erosion run into batches. The simulator's random
// stream carries across batches, so a batched run produces the same
// heightmap as a single call with the same iteration count.
type Runner struct {
	BatchSize  int
	OnProgress func(Progress) // Called after every batch, on the running goroutine
}

// NewRunner creates a runner with the default batch size.
func NewRunner() *Runner {
	return &Runner{BatchSize: DefaultBatchSize}
}

// Run erodes h in place. reset restarts the simulator's stream from its
// seed before the first batch. The context is checked between batches;
// on cancellation h holds the droplets completed so far and the context
// error is returned with the partial stats.
func (r *Runner) Run(ctx context.Context, sim *erosion.Simulator, h *terrain.Heightmap, iterations int, reset bool) (erosion.Stats, error) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	iterations = max(iterations, 0)

	start := time.Now()
	var total erosion.Stats
	done := 0
	first := true

	for done < iterations || first {
		if err := ctx.Err(); err != nil {
			slog.Warn("erosion run cancelled",
				"done", humanize.Comma(int64(done)),
				"total", humanize.Comma(int64(iterations)),
			)
			return total, err
		}

		n := min(batch, iterations-done)
		stats, err := sim.Erode(h, n, reset && first)
		if err != nil {
			return total, err
		}
		first = false
		total.Add(stats)
		done += n

		if r.OnProgress != nil {
			r.OnProgress(Progress{Done: done, Total: iterations, Stats: total, Elapsed: time.Since(start)})
		}
	}

	slog.Info("erosion run complete",
		"droplets", humanize.Comma(int64(total.Droplets)),
		"steps", humanize.Comma(int64(total.Steps)),
		"eroded", total.Eroded,
		"deposited", total.Deposited,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return total, nil
}
