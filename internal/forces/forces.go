// Package forces implements pairwise force fields over the particle state.
//
// Every field only adds into st.Forces; clearing the accumulator is the
// caller's job. Pairs come from the strategy carried in the Context, so the
// same field works with naive and cell enumeration alike.
package forces

import (
	"math"

	"github.com/san-kum/mdsim/internal/neighbor"
	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

// Context carries what a field needs beyond the state.
type Context struct {
	Cutoff float64
	Domain pbc.Domain
	Pairs  neighbor.Strategy
}

func (c Context) pairs() neighbor.Strategy {
	if c.Pairs == nil {
		return neighbor.NewNaive()
	}
	return c.Pairs
}

type ForceField interface {
	Name() string
	// Apply adds this field's forces into st.Forces.
	Apply(st *state.State, ctx Context)
	// Potential returns this field's potential energy, independent of Apply.
	Potential(st *state.State, ctx Context) float64
}

// DefaultSoftening is the Plummer length used when none is configured: a
// twentieth of the mean interparticle spacing.
func DefaultSoftening(box pbc.Box, n int) float64 {
	if n < 1 {
		n = 1
	}
	return 0.05 * math.Cbrt(box.Volume()/float64(n))
}

// softened accumulates prefactor*p_i*p_j*d/(r^2+eps^2)^1.5 for every pair.
func softened(st *state.State, ctx Context, prefactor float64, prop []float64, eps float64) {
	eps2 := eps * eps
	f := st.Forces
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		d2 := r2 + eps2
		if d2 == 0 {
			return
		}
		inv := 1 / math.Sqrt(d2)
		coef := prefactor * prop[i] * prop[j] * inv * inv * inv
		f[3*i] += coef * dx
		f[3*i+1] += coef * dy
		f[3*i+2] += coef * dz
		f[3*j] -= coef * dx
		f[3*j+1] -= coef * dy
		f[3*j+2] -= coef * dz
	})
}

func softenedPotential(st *state.State, ctx Context, prefactor float64, prop []float64, eps float64) float64 {
	eps2 := eps * eps
	pe := 0.0
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		d2 := r2 + eps2
		if d2 == 0 {
			return
		}
		pe += prefactor * prop[i] * prop[j] / math.Sqrt(d2)
	})
	return pe
}

// Gravity is softened Newtonian attraction between masses.
type Gravity struct {
	G         float64
	Softening float64
}

func NewGravity(G, softening float64) *Gravity {
	return &Gravity{G: G, Softening: softening}
}

func (g *Gravity) Name() string { return "gravity" }

func (g *Gravity) Apply(st *state.State, ctx Context) {
	softened(st, ctx, -g.G, st.Masses, g.Softening)
}

func (g *Gravity) Potential(st *state.State, ctx Context) float64 {
	return softenedPotential(st, ctx, -g.G, st.Masses, g.Softening)
}

// Coulomb is softened electrostatics; like charges repel.
type Coulomb struct {
	K         float64
	Softening float64
}

func NewCoulomb(K, softening float64) *Coulomb {
	return &Coulomb{K: K, Softening: softening}
}

func (c *Coulomb) Name() string { return "coulomb" }

func (c *Coulomb) Apply(st *state.State, ctx Context) {
	softened(st, ctx, c.K, st.Charges, c.Softening)
}

func (c *Coulomb) Potential(st *state.State, ctx Context) float64 {
	return softenedPotential(st, ctx, c.K, st.Charges, c.Softening)
}
