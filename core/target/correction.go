package target

import (
	"fmt"
	"math"
)

// Params are the controller gains and limits.
type Params struct {
	Setpoint    float64
	MaxVelocity float64
	Gain        float64
	Deadband    float64
}

func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"setpoint":     p.Setpoint,
		"max_velocity": p.MaxVelocity,
		"gain":         p.Gain,
		"deadband":     p.Deadband,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidOptions, name)
		}
	}
	if p.MaxVelocity < 0 {
		return fmt.Errorf("%w: max_velocity must not be negative", ErrInvalidOptions)
	}
	if p.Gain < 0 {
		return fmt.Errorf("%w: gain must not be negative", ErrInvalidOptions)
	}
	if p.Deadband < 0 {
		return fmt.Errorf("%w: deadband must not be negative", ErrInvalidOptions)
	}
	return nil
}

// Correction computes the velocity command for the observed position. The
// result is exactly 0 inside the deadband and never exceeds MaxVelocity in
// magnitude.
func Correction(p Params, position float64) float64 {
	diff := (p.Setpoint - position) * p.Gain
	if math.IsNaN(diff) || math.Abs(diff) < p.Deadband {
		return 0
	}
	return max(-p.MaxVelocity, min(p.MaxVelocity, diff))
}
