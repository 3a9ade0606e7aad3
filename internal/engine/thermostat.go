package engine

import (
	"math"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/state"
)

const (
	minBerendsenScale = 0.8
	maxBerendsenScale = 1.25
)

// berendsen rescales velocities toward the target temperature and returns
// the factor applied. A state with no kinetic energy is left alone.
func berendsen(st *state.State, th config.Thermostat, dt, kB float64) float64 {
	ke := 0.0
	for i := 0; i < st.N; i++ {
		vx, vy, vz := st.Velocities[3*i], st.Velocities[3*i+1], st.Velocities[3*i+2]
		ke += 0.5 * st.Masses[i] * (vx*vx + vy*vy + vz*vz)
	}
	t := metrics.Temperature(ke, st.N, kB)
	if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 1
	}

	lambda := math.Sqrt(math.Max(0, 1+(dt/th.Tau)*(th.Target/t-1)))
	lambda = math.Min(maxBerendsenScale, math.Max(minBerendsenScale, lambda))
	for i := range st.Velocities {
		st.Velocities[i] *= lambda
	}
	return lambda
}
