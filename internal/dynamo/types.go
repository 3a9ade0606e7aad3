package dynamo

import "github.com/san-kum/mdsim/internal/state"

// ForceFunc zeroes and fully re-accumulates st.Forces at the current
// positions.
type ForceFunc func()

// Integrator advances a state by one timestep. On entry st.Forces holds the
// forces at the current positions. Implementations must advance st.Time by
// exactly dt and, when they call recompute, leave st.Forces holding the
// result of the last call.
type Integrator interface {
	Name() string
	Step(st *state.State, dt float64, recompute ForceFunc)
}

// CheckDimensions verifies every buffer matches the particle count.
func CheckDimensions(st *state.State) error {
	n := st.N
	if len(st.Positions) != 3*n || len(st.Velocities) != 3*n || len(st.Forces) != 3*n ||
		len(st.Masses) != n || len(st.Charges) != n || len(st.Escaped) != n {
		return ErrDimensionMismatch
	}
	return nil
}
