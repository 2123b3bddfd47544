package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/talgya/erosion-lab/internal/terrain"
)

var (
	// ErrShapeMismatch is returned when two heightmaps cannot be compared.
	ErrShapeMismatch = errors.New("colormap: heightmaps differ in size")
	// ErrFallbackLength is returned when fallback colours do not cover every node.
	ErrFallbackLength = errors.New("colormap: fallback colour count does not match node count")
)

// ChangeMap splits the difference between two heightmaps into gain and
// loss magnitudes. A node is never both.
type ChangeMap struct {
	Size    int
	Gain    []float64
	Loss    []float64
	MaxGain float64 // 0 when nothing rose
	MaxLoss float64 // 0 when nothing fell
}

// Legend carries the scalar range shown next to change colours.
// MinLoss and MinGain are the smallest changes that passed the detection
// limit, or 0 when none did.
type Legend struct {
	MinLoss float64 `json:"min_loss"`
	MaxLoss float64 `json:"max_loss"`
	MinGain float64 `json:"min_gain"`
	MaxGain float64 `json:"max_gain"`
}

// Rounded returns the legend rounded to two decimals for display.
func (l Legend) Rounded() Legend {
	return Legend{
		MinLoss: round2(l.MinLoss),
		MaxLoss: round2(l.MaxLoss),
		MinGain: round2(l.MinGain),
		MaxGain: round2(l.MaxGain),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// ChangeOptions configures change colouring.
type ChangeOptions struct {
	DetectionLimit float64 // Minimum visible change, in scaled (rendered) height units
	HeightFactor   float64 // Scale from raw heightmap units to rendered units; 0 means the limit is already raw
	Gain           Gradient
	Loss           Gradient
}

// Result is a colour per node plus the legend describing them.
type Result struct {
	Colors []color.RGBA `json:"-"`
	Legend Legend       `json:"legend"`
}

// Diff computes per-node gain and loss between before and after.
func Diff(before, after *terrain.Heightmap) (*ChangeMap, error) {
	if !before.SameShape(after) {
		return nil, ErrShapeMismatch
	}
	n := before.Len()
	cm := &ChangeMap{
		Size: before.Size,
		Gain: make([]float64, n),
		Loss: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		delta := after.Values[i] - before.Values[i]
		switch {
		case delta < 0:
			cm.Loss[i] = -delta
			if cm.Loss[i] > cm.MaxLoss {
				cm.MaxLoss = cm.Loss[i]
			}
		case delta > 0:
			cm.Gain[i] = delta
			if delta > cm.MaxGain {
				cm.MaxGain = delta
			}
		}
	}
	return cm, nil
}

// Colorize colours nodes whose change exceeds the detection limit through
// the loss or gain gradient at their normalized magnitude; every other
// node keeps its fallback colour. A zero maximum normalizes to 0, so a
// map with no change renders entirely in fallback colours.
func (cm *ChangeMap) Colorize(opts ChangeOptions, fallback []color.RGBA) (Result, error) {
	n := len(cm.Gain)
	if len(fallback) != n {
		return Result{}, fmt.Errorf("%w: %d colours for %d nodes", ErrFallbackLength, len(fallback), n)
	}

	limit := opts.DetectionLimit
	if opts.HeightFactor != 0 {
		limit = opts.DetectionLimit / opts.HeightFactor
	}

	res := Result{
		Colors: make([]color.RGBA, n),
		Legend: Legend{MaxLoss: cm.MaxLoss, MaxGain: cm.MaxGain},
	}
	seenLoss, seenGain := false, false

	for i := 0; i < n; i++ {
		switch {
		case cm.Loss[i] > limit:
			if !seenLoss || cm.Loss[i] < res.Legend.MinLoss {
				res.Legend.MinLoss = cm.Loss[i]
				seenLoss = true
			}
			res.Colors[i] = opts.Loss.Evaluate(ratio(cm.Loss[i], cm.MaxLoss))
		case cm.Gain[i] > limit:
			if !seenGain || cm.Gain[i] < res.Legend.MinGain {
				res.Legend.MinGain = cm.Gain[i]
				seenGain = true
			}
			res.Colors[i] = opts.Gain.Evaluate(ratio(cm.Gain[i], cm.MaxGain))
		default:
			res.Colors[i] = fallback[i]
		}
	}
	return res, nil
}

// Change is Diff followed by Colorize.
func Change(before, after *terrain.Heightmap, opts ChangeOptions, fallback []color.RGBA) (Result, error) {
	cm, err := Diff(before, after)
	if err != nil {
		return Result{}, err
	}
	return cm.Colorize(opts, fallback)
}

func ratio(v, max float64) float64 {
	if max == 0 {
		return 0
	}
	return v / max
}
