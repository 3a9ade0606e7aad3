// Package metrics computes per-frame diagnostics of a particle state and
// classifies them for numerical stability.
package metrics

import (
	"math"

	"github.com/san-kum/mdsim/internal/forces"
	"github.com/san-kum/mdsim/internal/state"
)

type Diagnostics struct {
	Time        float64 `json:"time"`
	Kinetic     float64 `json:"kinetic"`
	Potential   float64 `json:"potential"`
	Total       float64 `json:"total"`
	Temperature float64 `json:"temperature"`
	MaxSpeed    float64 `json:"maxSpeed"`
	MaxForceMag float64 `json:"maxForceMag"`
}

// Compute gathers kinetic energy, max speed and max force magnitude in one
// pass over the particles, then sums every field's potential. A position
// dependent pair index is rebuilt first, since the integrator may have moved
// particles after the last force pass.
func Compute(st *state.State, fields []forces.ForceField, ctx forces.Context, kB float64) Diagnostics {
	d := Diagnostics{Time: st.Time}

	maxV2, maxF2 := 0.0, 0.0
	for i := 0; i < st.N; i++ {
		vx, vy, vz := st.Velocities[3*i], st.Velocities[3*i+1], st.Velocities[3*i+2]
		v2 := vx*vx + vy*vy + vz*vz
		d.Kinetic += 0.5 * st.Masses[i] * v2
		if v2 > maxV2 || math.IsNaN(v2) {
			maxV2 = v2
		}
		fx, fy, fz := st.Forces[3*i], st.Forces[3*i+1], st.Forces[3*i+2]
		f2 := fx*fx + fy*fy + fz*fz
		if f2 > maxF2 || math.IsNaN(f2) {
			maxF2 = f2
		}
	}
	d.MaxSpeed = math.Sqrt(maxV2)
	d.MaxForceMag = math.Sqrt(maxF2)
	d.Temperature = Temperature(d.Kinetic, st.N, kB)

	if p := ctx.Pairs; p != nil && p.RebuildEveryStep() {
		p.Rebuild(st, ctx.Domain, ctx.Cutoff)
	}
	for _, f := range fields {
		d.Potential += f.Potential(st, ctx)
	}
	d.Total = d.Kinetic + d.Potential
	return d
}

// Temperature converts kinetic energy to temperature with 3N-3 degrees of
// freedom. It is zero for fewer than two particles.
func Temperature(kinetic float64, n int, kB float64) float64 {
	if n < 2 || kB <= 0 {
		return 0
	}
	return 2 * kinetic / (kB * float64(3*n-3))
}

// EnergyDrift tracks the largest relative deviation of the total energy from
// the first observed value.
type EnergyDrift struct {
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func (e *EnergyDrift) Observe(d Diagnostics) {
	if e.samples == 0 {
		e.initialEnergy = d.Total
	}
	e.currentEnergy = d.Total
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(d.Total-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

// Value is the maximum relative drift seen so far.
func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Samples() int { return e.samples }

func (e *EnergyDrift) Reset() {
	*e = EnergyDrift{}
}
