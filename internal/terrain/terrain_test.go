package terrain

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestFromValuesRejectsNonSquareLength(t *testing.T) {
	if _, err := FromValues(3, make([]float64, 8)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, err := FromValues(0, nil); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	h, err := FromValues(2, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.At(1, 1); got != 4 {
		t.Fatalf("At(1, 1) = %v, want 4", got)
	}
	if got := h.At(2, 0); got != 0 {
		t.Fatalf("out of bounds At should return 0, got %v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	h, _ := FromValues(2, []float64{1, 2, 3, 4})
	c := h.Clone()
	c.Values[0] = 99
	if h.Values[0] != 1 {
		t.Fatal("mutating a clone changed the original")
	}
}

func TestMinMax(t *testing.T) {
	tests := []struct {
		in     []float64
		lo, hi float64
		ok     bool
	}{
		{nil, 0, 0, false},
		{[]float64{3}, 3, 3, true},
		{[]float64{2, -1, 5, 0}, -1, 5, true},
		{[]float64{-4, -2, -8}, -8, -2, true},
	}
	for _, tc := range tests {
		lo, hi, ok := MinMax(tc.in)
		if lo != tc.lo || hi != tc.hi || ok != tc.ok {
			t.Errorf("MinMax(%v) = (%v, %v, %v), want (%v, %v, %v)", tc.in, lo, hi, ok, tc.lo, tc.hi, tc.ok)
		}
	}

	lo32, hi32, _ := MinMax([]float32{0.5, 0.25})
	if lo32 != 0.25 || hi32 != 0.5 {
		t.Fatalf("float32 MinMax = (%v, %v)", lo32, hi32)
	}
}

func TestNormalizeZeroRange(t *testing.T) {
	if got := Normalize(3, 3, 3); got != 0 {
		t.Fatalf("zero range should normalise to 0, got %v", got)
	}
	if got := Normalize(2, 1, 3); got != 0.5 {
		t.Fatalf("Normalize(2, 1, 3) = %v", got)
	}
}

func TestElevationRoundTrip(t *testing.T) {
	h, _ := FromValues(2, []float64{0, 0.25, 0.5, 1})
	elev := h.Elevations(45)
	back, err := FromElevations(2, elev, 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range h.Values {
		if math.Abs(back.Values[i]-h.Values[i]) > 1e-12 {
			t.Fatalf("node %d = %v, want %v", i, back.Values[i], h.Values[i])
		}
	}
	if _, err := FromElevations(2, elev, 0); err == nil {
		t.Fatal("zero height factor should be rejected")
	}
}

func TestFlatFromElevation(t *testing.T) {
	h, err := FlatFromElevation(3, 5, 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 5.0 / 45.0
	for i, v := range h.Values {
		if v != want {
			t.Fatalf("node %d = %v, want %v", i, v, want)
		}
	}
}

func TestPlaneTilt(t *testing.T) {
	h, err := Plane(4, 45, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := h.Values[0:4]
	if row[0] != 0 {
		t.Fatalf("lowest column should be shifted to 0, got %v", row[0])
	}
	for x := 1; x < 4; x++ {
		if math.Abs(row[x]-row[x-1]-1) > 1e-9 {
			t.Fatalf("45 degree plane should rise by 1 per column, row=%v", row)
		}
	}
	if !slices.Equal(h.Values[0:4], h.Values[12:16]) {
		t.Fatal("tilt should be constant along y")
	}

	neg, _ := Plane(4, -45, 1)
	if neg.Values[3] != 0 || neg.Values[0] <= neg.Values[3] {
		t.Fatalf("negative angle should fall with x, row=%v", neg.Values[0:4])
	}

	vertical, _ := Plane(4, 90, 1)
	if vertical.Sum() != 0 {
		t.Fatal("vertical plane should degrade to flat")
	}
}

func TestFormula(t *testing.T) {
	h, err := Formula(5, "X + 2 * Y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.At(0, 0) != 0 || h.At(4, 0) != 1 || h.At(0, 4) != 2 || h.At(2, 2) != 1.5 {
		t.Fatalf("formula values = %v", h.Values)
	}

	ridge, err := Formula(9, "Clamp(1 - Hypot(X - 0.5, Y - 0.5) * 2, 0.0, 1.0)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ridge.At(4, 4) != 1 || ridge.At(0, 0) != 0 {
		t.Fatalf("cone centre %v, corner %v", ridge.At(4, 4), ridge.At(0, 0))
	}

	if _, err := Formula(4, "Col"); err != nil {
		t.Fatalf("integer formula should be accepted: %v", err)
	}
	if _, err := Formula(4, "X +"); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := Formula(4, `"tall"`); err == nil {
		t.Fatal("expected non-numeric formula to be rejected")
	}
	if _, err := Formula(4, "Sqrt(X - 2)"); !errors.Is(err, ErrFormulaValue) {
		t.Fatalf("expected ErrFormulaValue, got %v", err)
	}
}
