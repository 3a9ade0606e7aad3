package forces

import (
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

const (
	// DefaultEwaldAlphaCutoff is alpha*cutoff when alpha is not configured;
	// erfc(3.5) is about 7e-7, so the real-space tail past the cutoff is
	// negligible.
	DefaultEwaldAlphaCutoff = 3.5

	// Without a configured kmax the reciprocal sum runs until the damping
	// exp(-k^2/4alpha^2) drops below exp(-EwaldDampExponent), clamped to
	// [MinEwaldKMax, MaxEwaldKMax].
	EwaldDampExponent = 10
	MinEwaldKMax      = 5
	MaxEwaldKMax      = 24

	parallelMinChunk = 256
	kvecMinChunk     = 32
)

type kvec struct {
	kx, ky, kz float64
	// damp is exp(-k^2/4alpha^2)/k^2.
	damp float64
}

type ewaldKey struct {
	half  pbc.Box
	alpha float64
	kmax  int
}

// Ewald sums a 1/r interaction over all periodic images by splitting it into
// a short-ranged erfc(alpha r)/r part handled through the pair strategy, a
// reciprocal-space sum over k-vectors, and a self-energy correction. Outside
// a periodic domain it falls back to the softened kernel.
type Ewald struct {
	name      string
	prefactor float64
	property  func(st *state.State) []float64

	Alpha     float64
	KMax      int
	Softening float64

	key   ewaldKey
	kvecs []kvec
	// re and im hold S(k) for each entry of kvecs.
	re []float64
	im []float64
}

// NewEwaldGravity returns a periodic gravity field. Zero alpha or kmax select
// the defaults.
func NewEwaldGravity(G, alpha float64, kmax int, softening float64) *Ewald {
	return &Ewald{
		name:      "ewald-gravity",
		prefactor: -G,
		property:  func(st *state.State) []float64 { return st.Masses },
		Alpha:     alpha,
		KMax:      kmax,
		Softening: softening,
	}
}

// NewEwaldCoulomb returns a periodic electrostatics field.
func NewEwaldCoulomb(K, alpha float64, kmax int, softening float64) *Ewald {
	return &Ewald{
		name:      "ewald-coulomb",
		prefactor: K,
		property:  func(st *state.State) []float64 { return st.Charges },
		Alpha:     alpha,
		KMax:      kmax,
		Softening: softening,
	}
}

func (e *Ewald) Name() string { return e.name }

func (e *Ewald) alpha(ctx Context) float64 {
	if e.Alpha > 0 {
		return e.Alpha
	}
	if ctx.Cutoff > 0 {
		return DefaultEwaldAlphaCutoff / ctx.Cutoff
	}
	return 1
}

// kmax bounds |n| for k = 2*pi*n/L. For k^2/4alpha^2 >= EwaldDampExponent
// along the longest axis, |n| >= alpha*L*sqrt(EwaldDampExponent)/pi.
func (e *Ewald) kmax(alpha float64, half pbc.Box) int {
	if e.KMax > 0 {
		return e.KMax
	}
	l := 2 * max(half[0], half[1], half[2])
	n := int(math.Ceil(alpha * l * math.Sqrt(EwaldDampExponent) / math.Pi))
	return min(max(n, MinEwaldKMax), MaxEwaldKMax)
}

func (e *Ewald) Apply(st *state.State, ctx Context) {
	p := e.property(st)
	if !ctx.Domain.Periodic {
		softened(st, ctx, e.prefactor, p, e.Softening)
		return
	}

	alpha := e.alpha(ctx)
	e.realForces(st, ctx, p, alpha)
	e.reciprocalForces(st, ctx.Domain.Half, p, alpha)
}

func (e *Ewald) Potential(st *state.State, ctx Context) float64 {
	p := e.property(st)
	if !ctx.Domain.Periodic {
		return softenedPotential(st, ctx, e.prefactor, p, e.Softening)
	}

	alpha := e.alpha(ctx)
	pe := 0.0
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		if r2 == 0 {
			return
		}
		r := math.Sqrt(r2)
		pe += e.prefactor * p[i] * p[j] * math.Erfc(alpha*r) / r
	})

	half := ctx.Domain.Half
	e.prepare(half, alpha)
	e.structureFactors(st, p)
	volume := half.Volume()
	recip := 0.0
	for m, k := range e.kvecs {
		recip += k.damp * (e.re[m]*e.re[m] + e.im[m]*e.im[m])
	}
	// kvecs covers half of k-space; the other half mirrors it.
	pe += 2 * (2 * math.Pi / volume) * e.prefactor * recip

	self := 0.0
	for i := 0; i < st.N; i++ {
		self += p[i] * p[i]
	}
	pe -= e.prefactor * alpha / math.Sqrt(math.Pi) * self
	return pe
}

func (e *Ewald) realForces(st *state.State, ctx Context, p []float64, alpha float64) {
	f := st.Forces
	gauss := 2 * alpha / math.Sqrt(math.Pi)
	a2 := alpha * alpha
	ctx.pairs().ForEachPair(st, ctx.Domain, ctx.Cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		if r2 == 0 {
			return
		}
		r := math.Sqrt(r2)
		coef := e.prefactor * p[i] * p[j] * (math.Erfc(alpha*r)/r + gauss*math.Exp(-a2*r2)) / r2
		f[3*i] += coef * dx
		f[3*i+1] += coef * dy
		f[3*i+2] += coef * dz
		f[3*j] -= coef * dx
		f[3*j+1] -= coef * dy
		f[3*j+2] -= coef * dz
	})
}

func (e *Ewald) reciprocalForces(st *state.State, half pbc.Box, p []float64, alpha float64) {
	e.prepare(half, alpha)
	e.structureFactors(st, p)
	f, pos := st.Forces, st.Positions
	// 4pi/V from the gradient, doubled for the mirrored half of k-space.
	scale := 2 * (4 * math.Pi / half.Volume()) * e.prefactor

	dynamo.ParallelFor(st.N, parallelMinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := pos[3*i], pos[3*i+1], pos[3*i+2]
			var gx, gy, gz float64
			for m, k := range e.kvecs {
				sin, cos := math.Sincos(k.kx*x + k.ky*y + k.kz*z)
				g := k.damp * (e.re[m]*sin - e.im[m]*cos)
				gx += g * k.kx
				gy += g * k.ky
				gz += g * k.kz
			}
			a := scale * p[i]
			f[3*i] += a * gx
			f[3*i+1] += a * gy
			f[3*i+2] += a * gz
		}
	})
}

// structureFactors fills re and im with S(k) = sum p_i exp(i k.r_i) for every
// cached k-vector. Workers split the k-vectors; each sums over all particles
// in index order.
func (e *Ewald) structureFactors(st *state.State, p []float64) {
	pos := st.Positions
	dynamo.ParallelFor(len(e.kvecs), kvecMinChunk, func(start, end int) {
		for m := start; m < end; m++ {
			k := e.kvecs[m]
			c, s := 0.0, 0.0
			for i := 0; i < st.N; i++ {
				sin, cos := math.Sincos(k.kx*pos[3*i] + k.ky*pos[3*i+1] + k.kz*pos[3*i+2])
				c += p[i] * cos
				s += p[i] * sin
			}
			e.re[m], e.im[m] = c, s
		}
	})
}

// prepare rebuilds the k-vector table and its structure-factor scratch when
// the box, alpha or kmax changed. Only one of each +-k pair is kept.
func (e *Ewald) prepare(half pbc.Box, alpha float64) {
	key := ewaldKey{half: half, alpha: alpha, kmax: e.kmax(alpha, half)}
	if e.kvecs != nil && key == e.key {
		return
	}

	kmax := key.kmax
	var two [3]float64
	for a := 0; a < 3; a++ {
		two[a] = 2 * math.Pi / half.Length(a)
	}
	inv4a2 := 1 / (4 * alpha * alpha)

	e.kvecs = e.kvecs[:0]
	for nx := 0; nx <= kmax; nx++ {
		for ny := -kmax; ny <= kmax; ny++ {
			for nz := -kmax; nz <= kmax; nz++ {
				if nx == 0 && (ny < 0 || (ny == 0 && nz <= 0)) {
					continue
				}
				if nx*nx+ny*ny+nz*nz > kmax*kmax {
					continue
				}
				kx := two[0] * float64(nx)
				ky := two[1] * float64(ny)
				kz := two[2] * float64(nz)
				k2 := kx*kx + ky*ky + kz*kz
				e.kvecs = append(e.kvecs, kvec{kx: kx, ky: ky, kz: kz, damp: math.Exp(-k2*inv4a2) / k2})
			}
		}
	}
	e.re = make([]float64, len(e.kvecs))
	e.im = make([]float64, len(e.kvecs))
	e.key = key
}
