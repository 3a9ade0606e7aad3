package forces

import "github.com/san-kum/mdsim/internal/state"

// LennardJones is the 12-6 potential 4eps((sigma/r)^12 - (sigma/r)^6),
// truncated at the context cutoff without shifting.
type LennardJones struct {
	Epsilon float64
	Sigma   float64
}

func NewLennardJones(epsilon, sigma float64) *LennardJones {
	return &LennardJones{Epsilon: epsilon, Sigma: sigma}
}

func (lj *LennardJones) Name() string { return "lennard-jones" }

func (lj *LennardJones) Apply(st *state.State, ctx Context) {
	sig2 := lj.Sigma * lj.Sigma
	eps24 := 24 * lj.Epsilon
	f := st.Forces
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		if r2 == 0 {
			return
		}
		s2 := sig2 / r2
		s6 := s2 * s2 * s2
		coef := eps24 * (2*s6*s6 - s6) / r2
		f[3*i] += coef * dx
		f[3*i+1] += coef * dy
		f[3*i+2] += coef * dz
		f[3*j] -= coef * dx
		f[3*j+1] -= coef * dy
		f[3*j+2] -= coef * dz
	})
}

func (lj *LennardJones) Potential(st *state.State, ctx Context) float64 {
	sig2 := lj.Sigma * lj.Sigma
	pe := 0.0
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		if r2 == 0 {
			return
		}
		s2 := sig2 / r2
		s6 := s2 * s2 * s2
		pe += 4 * lj.Epsilon * (s6*s6 - s6)
	})
	return pe
}
