package colormap

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/talgya/erosion-lab/internal/terrain"
)

// recordGradient encodes the evaluated t into the red channel so tests can
// read back which value a node was coloured with.
type recordGradient struct {
	tag uint8
}

func (g recordGradient) Evaluate(t float64) color.RGBA {
	return color.RGBA{R: uint8(math.Round(t * 100)), G: g.tag, A: 255}
}

var (
	gainTag     = recordGradient{tag: 1}
	lossTag     = recordGradient{tag: 2}
	fallbackCol = color.RGBA{G: 9, A: 255}
)

func fallbacks(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		out[i] = fallbackCol
	}
	return out
}

func fourCell(t *testing.T, values []float64) *terrain.Heightmap {
	t.Helper()
	h, err := terrain.FromValues(2, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h
}

func TestChangeFourCellExample(t *testing.T) {
	before := fourCell(t, []float64{0, 0, 0, 0})
	after := fourCell(t, []float64{0, 1, -1, 0})
	opts := ChangeOptions{DetectionLimit: 0, HeightFactor: 45, Gain: gainTag, Loss: lossTag}

	res, err := Change(before, after, opts, fallbacks(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Legend.MaxGain != 1 || res.Legend.MaxLoss != 1 {
		t.Fatalf("legend maxima = %+v, want 1 and 1", res.Legend)
	}
	if res.Legend.MinGain != 1 || res.Legend.MinLoss != 1 {
		t.Fatalf("legend minima = %+v, want 1 and 1", res.Legend)
	}

	want := []color.RGBA{
		fallbackCol,
		{R: 100, G: 1, A: 255},
		{R: 100, G: 2, A: 255},
		fallbackCol,
	}
	for i, c := range res.Colors {
		if c != want[i] {
			t.Errorf("cell %d = %+v, want %+v", i, c, want[i])
		}
	}

	// A limit above 1 raw unit (given in scaled units) hides every change.
	opts.DetectionLimit = 1.01 * opts.HeightFactor
	res, err = Change(before, after, opts, fallbacks(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range res.Colors {
		if c != fallbackCol {
			t.Errorf("cell %d = %+v, want fallback", i, c)
		}
	}
	if res.Legend.MinGain != 0 || res.Legend.MinLoss != 0 {
		t.Fatalf("no cell passed the limit, minima should be 0, got %+v", res.Legend)
	}
	if res.Legend.MaxGain != 1 || res.Legend.MaxLoss != 1 {
		t.Fatalf("maxima do not depend on the limit, got %+v", res.Legend)
	}
}

func TestChangeNormalizesAndTracksDisplayedMinimum(t *testing.T) {
	before := fourCell(t, []float64{1, 1, 1, 1})
	after := fourCell(t, []float64{0.5, 0.9, 1.4, 1.1})
	opts := ChangeOptions{DetectionLimit: 0.15, HeightFactor: 1, Gain: gainTag, Loss: lossTag}

	res, err := Change(before, after, opts, fallbacks(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Legend.MaxLoss-0.5) > 1e-12 || math.Abs(res.Legend.MaxGain-0.4) > 1e-12 {
		t.Fatalf("maxima = %+v", res.Legend)
	}
	// 0.1 loss and 0.1 gain stay under the 0.15 limit.
	if math.Abs(res.Legend.MinLoss-0.5) > 1e-12 || math.Abs(res.Legend.MinGain-0.4) > 1e-12 {
		t.Fatalf("displayed minima = %+v", res.Legend)
	}
	if res.Colors[1] != fallbackCol || res.Colors[3] != fallbackCol {
		t.Fatal("changes under the limit should keep the fallback colour")
	}
	if res.Colors[0] != (color.RGBA{R: 100, G: 2, A: 255}) {
		t.Fatalf("largest loss should evaluate at 1, got %+v", res.Colors[0])
	}

	// Lowering the limit reveals the smaller changes and the minima follow.
	opts.DetectionLimit = 0.05
	res, _ = Change(before, after, opts, fallbacks(4))
	if math.Abs(res.Legend.MinLoss-0.1) > 1e-9 || math.Abs(res.Legend.MinGain-0.1) > 1e-9 {
		t.Fatalf("displayed minima = %+v", res.Legend)
	}
	if res.Colors[3] != (color.RGBA{R: 25, G: 1, A: 255}) {
		t.Fatalf("0.1 gain of 0.4 should evaluate at 0.25, got %+v", res.Colors[3])
	}
}

func TestChangeWithoutAnyChangeFallsBack(t *testing.T) {
	a := fourCell(t, []float64{0.2, 0.4, 0.6, 0.8})
	res, err := Change(a, a.Clone(), ChangeOptions{HeightFactor: 45, Gain: gainTag, Loss: lossTag}, fallbacks(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Legend != (Legend{}) {
		t.Fatalf("no change should report an all-zero legend, got %+v", res.Legend)
	}
	for i, c := range res.Colors {
		if c != fallbackCol {
			t.Fatalf("cell %d = %+v, want fallback", i, c)
		}
	}
}

func TestDiffGainOnlyHasZeroLossNormalization(t *testing.T) {
	before := fourCell(t, []float64{0, 0, 0, 0})
	after := fourCell(t, []float64{0, 0.5, 0, 0})
	cm, err := Diff(before, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cm.MaxLoss != 0 {
		t.Fatalf("max loss = %v, want 0", cm.MaxLoss)
	}
	// Negative limit pushes unchanged nodes through the loss gradient; they must not be NaN.
	res, _ := cm.Colorize(ChangeOptions{DetectionLimit: -1, HeightFactor: 1, Gain: gainTag, Loss: lossTag}, fallbacks(4))
	if res.Colors[0] != (color.RGBA{R: 0, G: 2, A: 255}) {
		t.Fatalf("zero maximum should normalize to 0, got %+v", res.Colors[0])
	}
}

func TestChangeErrors(t *testing.T) {
	a := fourCell(t, []float64{0, 0, 0, 0})
	b, _ := terrain.New(3)
	if _, err := Diff(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := Change(a, a, ChangeOptions{Gain: gainTag, Loss: lossTag}, fallbacks(3)); !errors.Is(err, ErrFallbackLength) {
		t.Fatalf("expected ErrFallbackLength, got %v", err)
	}
}

func TestHeightNormalizesAndHandlesFlat(t *testing.T) {
	h := fourCell(t, []float64{2, 3, 4, 6})
	colors := Height(h, gainTag)
	wantR := []uint8{0, 25, 50, 100}
	for i, c := range colors {
		if c.R != wantR[i] {
			t.Errorf("node %d evaluated at %d/100, want %d/100", i, c.R, wantR[i])
		}
	}

	flat := fourCell(t, []float64{0.3, 0.3, 0.3, 0.3})
	for i, c := range Height(flat, gainTag) {
		if c.R != 30 {
			t.Fatalf("flat node %d should evaluate at its raw height, got %d/100", i, c.R)
		}
	}
}

func TestLinearGradient(t *testing.T) {
	g := NewLinear(
		Stop{1, color.RGBA{R: 200, A: 255}},
		Stop{0, color.RGBA{R: 0, A: 255}},
	)
	tests := []struct {
		t    float64
		want uint8
	}{
		{-1, 0}, {0, 0}, {0.5, 100}, {0.25, 50}, {1, 200}, {3, 200}, {math.NaN(), 0},
	}
	for _, tc := range tests {
		if got := g.Evaluate(tc.t).R; got != tc.want {
			t.Errorf("Evaluate(%v).R = %d, want %d", tc.t, got, tc.want)
		}
	}
	if (&Linear{}).Evaluate(0.5) != (color.RGBA{}) {
		t.Fatal("empty gradient should evaluate to transparent")
	}
}

func TestLegendRounded(t *testing.T) {
	l := Legend{MinLoss: 0.004, MaxLoss: 1.236, MinGain: 0.125, MaxGain: 2}
	got := l.Rounded()
	want := Legend{MinLoss: 0, MaxLoss: 1.24, MinGain: 0.13, MaxGain: 2}
	if got != want {
		t.Fatalf("Rounded() = %+v, want %+v", got, want)
	}
}

func TestWritePNG(t *testing.T) {
	colors := []color.RGBA{{R: 1, A: 255}, {G: 2, A: 255}, {B: 3, A: 255}, {R: 4, A: 255}}
	var buf bytes.Buffer
	if err := WritePNG(&buf, 2, colors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, _, _, _ := img.At(1, 1).RGBA()
	if uint8(r>>8) != 4 {
		t.Fatalf("pixel (1,1) red = %d, want 4", r>>8)
	}
	if err := WritePNG(&buf, 3, colors); err == nil {
		t.Fatal("expected error for mismatched size")
	}
}

func TestLegendImage(t *testing.T) {
	l := Legend{MinLoss: 0.01, MaxLoss: 0.2, MinGain: 0.02, MaxGain: 0.1}
	img := LegendImage(300, l, 45, Loss, Gain)
	if img.Bounds().Dx() != 300 {
		t.Fatalf("width = %d, want 300", img.Bounds().Dx())
	}

	// Bar ends carry the gradient end colours.
	barLeft, barRight := legendLabelW+legendValueW, 300-legendValueW-1
	if got := img.RGBAAt(barLeft, 6); got != Loss.Evaluate(0) {
		t.Fatalf("loss bar start = %+v, want %+v", got, Loss.Evaluate(0))
	}
	if got := img.RGBAAt(barRight, 4+legendRowHeight+2); got != Gain.Evaluate(1) {
		t.Fatalf("gain bar end = %+v, want %+v", got, Gain.Evaluate(1))
	}

	// Labels draw dark pixels into the label column.
	dark := 0
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < legendLabelW; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatal("expected label text in the legend")
	}

	if narrow := LegendImage(10, l, 0, Loss, Gain); narrow.Bounds().Dx() < legendLabelW+2*legendValueW {
		t.Fatalf("narrow legend width = %d", narrow.Bounds().Dx())
	}
}
