package integrators

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/state"
)

// Euler is the explicit first-order scheme. It is not symplectic and drifts
// in energy; it exists for comparison against Verlet.
type Euler struct{}

var _ dynamo.Integrator = (*Euler)(nil)

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return NameEuler }

func (e *Euler) Step(st *state.State, dt float64, _ dynamo.ForceFunc) {
	for i := 0; i < st.N; i++ {
		invM := inverseMass(st.Masses[i])
		for a := 3 * i; a < 3*i+3; a++ {
			st.Velocities[a] += st.Forces[a] * invM * dt
			st.Positions[a] += st.Velocities[a] * dt
		}
	}
	st.Time += dt
}

// inverseMass treats non-positive masses as immovable.
func inverseMass(m float64) float64 {
	if m <= 0 {
		return 0
	}
	return 1 / m
}
