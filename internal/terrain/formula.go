package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrFormulaValue is returned when a formula yields NaN or an infinity.
var ErrFormulaValue = errors.New("terrain: formula produced a non-finite height")

// FormulaEnv is what a height formula can see for one node. X and Y run
// from 0 at the first node to 1 at the last; Col and Row are the raw indices.
type FormulaEnv struct {
	X, Y     float64
	Col, Row int
	Size     int
}

func (FormulaEnv) Sin(v float64) float64 { return math.Sin(v) }
func (FormulaEnv) Cos(v float64) float64 { return math.Cos(v) }
func (FormulaEnv) Exp(v float64) float64 { return math.Exp(v) }
func (FormulaEnv) Sqrt(v float64) float64 { return math.Sqrt(v) }
func (FormulaEnv) Pow(b, e float64) float64 { return math.Pow(b, e) }
func (FormulaEnv) Hypot(a, b float64) float64 { return math.Hypot(a, b) }
func (FormulaEnv) Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Formula compiles src once and evaluates it at every node, e.g.
// "0.5 + 0.2 * Sin(X * 6.28) * Cos(Y * 6.28)". Results are raw heightmap
// units, not normalized.
func Formula(size int, src string) (*Heightmap, error) {
	h, err := New(size)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(src, expr.Env(FormulaEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile formula: %w", err)
	}

	span := float64(max(size-1, 1))
	env := FormulaEnv{Size: size}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			env.X, env.Y = float64(x)/span, float64(y)/span
			env.Col, env.Row = x, y
			out, err := vm.Run(prog, env)
			if err != nil {
				return nil, fmt.Errorf("formula at (%d, %d): %w", x, y, err)
			}
			v, ok := out.(float64)
			if !ok {
				return nil, fmt.Errorf("formula at (%d, %d): result %T is not a number", x, y, out)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w at (%d, %d)", ErrFormulaValue, x, y)
			}
			h.Values[h.Index(x, y)] = v
		}
	}
	return h, nil
}
