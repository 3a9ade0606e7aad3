package config

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/neighbor"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// FieldError names one rejected field by its dotted path.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s = %v: %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidConfig }

// Validate reports every invalid field at once. Nothing is coerced.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, v any, reason string) {
		errs = append(errs, &FieldError{Field: field, Value: v, Reason: reason})
	}
	positive := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			bad(field, v, "must be finite and > 0")
		}
	}
	optional := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			bad(field, v, "must be finite and >= 0")
		}
	}

	if c.World.ParticleCount < 1 {
		bad("world.particleCount", c.World.ParticleCount, "must be >= 1")
	}
	positive("world.box.x", c.World.Box.X)
	positive("world.box.y", c.World.Box.Y)
	positive("world.box.z", c.World.Box.Z)

	r := c.Runtime
	positive("runtime.dt", r.Dt)
	positive("runtime.cutoff", r.Cutoff)
	if !slices.Contains(integrators.Names(), r.Integrator) {
		bad("runtime.integrator", r.Integrator, fmt.Sprintf("must be one of %v", integrators.Names()))
	}
	optional("runtime.ewaldAlpha", r.EwaldAlpha)
	optional("runtime.softening", r.Softening)
	if r.EwaldKMax < 0 {
		bad("runtime.ewaldKMax", r.EwaldKMax, "must be >= 0")
	}
	if r.PBC && r.Cutoff > 0 {
		// Minimum image sees only the nearest copy of each particle.
		shortest := min(c.World.Box.X, c.World.Box.Y, c.World.Box.Z)
		if shortest > 0 && r.Cutoff > shortest {
			bad("runtime.cutoff", r.Cutoff, fmt.Sprintf("must not exceed the smallest half-extent %g when periodic", shortest))
		}
	}
	if r.Thermostat.Enabled {
		positive("runtime.thermostat.target", r.Thermostat.Target)
		positive("runtime.thermostat.tau", r.Thermostat.Tau)
	}

	k := c.Constants
	positive("constants.epsilon", k.Epsilon)
	positive("constants.sigma", k.Sigma)
	positive("constants.G", k.G)
	positive("constants.K", k.K)
	positive("constants.kB", k.KB)

	if !slices.Contains(neighbor.Names(), c.Neighbor.Strategy) {
		bad("neighbor.strategy", c.Neighbor.Strategy, fmt.Sprintf("must be one of %v", neighbor.Names()))
	}

	s := c.Stability
	positive("stability.maxSpeed", s.MaxSpeed)
	positive("stability.maxForce", s.MaxForce)
	positive("stability.energyJump", s.EnergyJump)
	positive("stability.temperatureRatio", s.TemperatureRatio)
	if s.SevereFrames < 1 {
		bad("stability.severeFrames", s.SevereFrames, "must be >= 1")
	}
	if s.WarningFrames < 1 {
		bad("stability.warningFrames", s.WarningFrames, "must be >= 1")
	}

	return errors.Join(errs...)
}
