package integrators

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/state"
)

// Verlet is velocity Verlet: positions advance a full step with the current
// accelerations, forces are recomputed, and velocities advance with the mean
// of the old and new accelerations. Symplectic and time-reversible.
type Verlet struct {
	prevAcc []float64
}

var _ dynamo.Integrator = (*Verlet)(nil)

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Name() string { return NameVerlet }

func (v *Verlet) ensureScratch(n int) {
	if len(v.prevAcc) != n {
		v.prevAcc = make([]float64, n)
	}
}

func (v *Verlet) Step(st *state.State, dt float64, recompute dynamo.ForceFunc) {
	v.ensureScratch(len(st.Positions))
	halfDt2 := 0.5 * dt * dt

	for i := 0; i < st.N; i++ {
		invM := inverseMass(st.Masses[i])
		for a := 3 * i; a < 3*i+3; a++ {
			acc := st.Forces[a] * invM
			v.prevAcc[a] = acc
			st.Positions[a] += st.Velocities[a]*dt + acc*halfDt2
		}
	}

	if recompute != nil {
		recompute()
	}

	halfDt := 0.5 * dt
	for i := 0; i < st.N; i++ {
		invM := inverseMass(st.Masses[i])
		for a := 3 * i; a < 3*i+3; a++ {
			st.Velocities[a] += (v.prevAcc[a] + st.Forces[a]*invM) * halfDt
		}
	}
	st.Time += dt
}
