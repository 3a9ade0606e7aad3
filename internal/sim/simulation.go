// Package sim wires a particle state, its force fields and an integrator into
// a single steppable simulation.
package sim

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/forces"
	"github.com/san-kum/mdsim/internal/state"
)

// Simulation composes a state, an integrator and a fixed, ordered set of
// force fields. For a given field order Step is deterministic.
type Simulation struct {
	State      *state.State
	Integrator dynamo.Integrator
	Fields     []forces.ForceField
	Context    forces.Context
	Dt         float64
}

func New(st *state.State, integ dynamo.Integrator, fields []forces.ForceField, ctx forces.Context, dt float64) *Simulation {
	return &Simulation{
		State:      st,
		Integrator: integ,
		Fields:     fields,
		Context:    ctx,
		Dt:         dt,
	}
}

// ComputeForces zeroes the accumulator, refreshes the pair index and applies
// every field.
func (s *Simulation) ComputeForces() {
	s.State.ZeroForces()
	s.rebuildPairs()
	for _, f := range s.Fields {
		f.Apply(s.State, s.Context)
	}
}

func (s *Simulation) rebuildPairs() {
	if p := s.Context.Pairs; p != nil {
		p.Rebuild(s.State, s.Context.Domain, s.Context.Cutoff)
	}
}

// Step advances the state by Dt. Forces are computed at the current positions
// first; integrators that need forces at the new positions recompute them
// through the callback.
func (s *Simulation) Step() error {
	if err := dynamo.CheckDimensions(s.State); err != nil {
		return err
	}
	s.ComputeForces()
	s.Integrator.Step(s.State, s.Dt, s.ComputeForces)
	return nil
}

// Contribution is one field's share of the net force.
type Contribution struct {
	Name   string
	Forces []float64
}

// PerForceContributions evaluates each field separately at the current
// positions. The contributions sum to the array ComputeForces produces. The
// state's own force accumulator is left untouched.
func (s *Simulation) PerForceContributions() []Contribution {
	st := s.State
	saved := st.Forces
	defer func() { st.Forces = saved }()

	s.rebuildPairs()
	out := make([]Contribution, 0, len(s.Fields))
	for _, f := range s.Fields {
		buf := make([]float64, len(saved))
		st.Forces = buf
		f.Apply(st, s.Context)
		out = append(out, Contribution{Name: f.Name(), Forces: buf})
	}
	return out
}

// Potential sums the potential energy of every field.
func (s *Simulation) Potential() float64 {
	s.rebuildPairs()
	pe := 0.0
	for _, f := range s.Fields {
		pe += f.Potential(s.State, s.Context)
	}
	return pe
}
