package erosion

import (
	"errors"
	"fmt"
)

// Upper bounds accepted by Validate. The brush holds about πr² points per
// node and every droplet walks at most MaxLifetime steps.
const (
	MaxRadius   = 32
	MaxLifetime = 4096
)

// Params holds droplet erosion tuning. Values are immutable for a run.
type Params struct {
	Radius                 int     `json:"radius"`                   // Brush radius in nodes (typically 2–8)
	Inertia                float64 `json:"inertia"`                  // 0 follows the slope instantly, 1 never turns
	SedimentCapacityFactor float64 `json:"sediment_capacity_factor"` // How much sediment a drop can carry
	MinSedimentCapacity    float64 `json:"min_sediment_capacity"`    // Floor so flat terrain still carries something
	ErodeSpeed             float64 `json:"erode_speed"`              // 0.0–1.0
	DepositSpeed           float64 `json:"deposit_speed"`            // 0.0–1.0
	EvaporateSpeed         float64 `json:"evaporate_speed"`          // 0.0–1.0
	Gravity                float64 `json:"gravity"`
	MaxLifetime            int     `json:"max_lifetime"` // Step cap per droplet
	InitialWater           float64 `json:"initial_water"`
	InitialSpeed           float64 `json:"initial_speed"`
}

// DefaultParams returns the standard erosion settings.
func DefaultParams() Params {
	return Params{
		Radius:                 2,
		Inertia:                0.05,
		SedimentCapacityFactor: 4,
		MinSedimentCapacity:    0.01,
		ErodeSpeed:             0.3,
		DepositSpeed:           0.3,
		EvaporateSpeed:         0.01,
		Gravity:                4,
		MaxLifetime:            30,
		InitialWater:           1,
		InitialSpeed:           1,
	}
}

// Validate reports every out-of-range parameter. The simulator itself
// does not re-check; configuration layers call this before a run.
func (p Params) Validate() error {
	var errs []error
	if p.Radius < 1 || p.Radius > MaxRadius {
		errs = append(errs, fmt.Errorf("radius %d outside [1, %d]", p.Radius, MaxRadius))
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"inertia", p.Inertia},
		{"erode_speed", p.ErodeSpeed},
		{"deposit_speed", p.DepositSpeed},
		{"evaporate_speed", p.EvaporateSpeed},
	}
	for _, u := range unit {
		if !(u.v >= 0 && u.v <= 1) {
			errs = append(errs, fmt.Errorf("%s %v outside [0, 1]", u.name, u.v))
		}
	}
	if p.SedimentCapacityFactor < 0 {
		errs = append(errs, fmt.Errorf("sediment_capacity_factor %v must not be negative", p.SedimentCapacityFactor))
	}
	if p.MinSedimentCapacity < 0 {
		errs = append(errs, fmt.Errorf("min_sediment_capacity %v must not be negative", p.MinSedimentCapacity))
	}
	if p.MaxLifetime < 1 || p.MaxLifetime > MaxLifetime {
		errs = append(errs, fmt.Errorf("max_lifetime %d outside [1, %d]", p.MaxLifetime, MaxLifetime))
	}
	if p.InitialWater <= 0 {
		errs = append(errs, fmt.Errorf("initial_water %v must be positive", p.InitialWater))
	}
	if p.InitialSpeed < 0 {
		errs = append(errs, fmt.Errorf("initial_speed %v must not be negative", p.InitialSpeed))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("erosion params: %w", errors.Join(errs...))
}
