// Package state holds particle data in structure-of-arrays layout.
//
// Vectors are stored flat with three contiguous components per particle, so
// particle i occupies indices 3*i, 3*i+1 and 3*i+2 of Positions, Velocities
// and Forces.
package state

import (
	"math"

	"github.com/san-kum/mdsim/internal/pbc"
)

type State struct {
	N          int
	Time       float64
	Positions  []float64
	Velocities []float64
	// Forces is rebuilt from zero on every force pass.
	Forces  []float64
	Masses  []float64
	Charges []float64
	Escaped []uint8
}

// New allocates a state for n particles placed on a centered cubic lattice
// inside box, with unit masses, alternating +1/-1 charges and zero velocities.
func New(n int, box pbc.Box) *State {
	if n < 0 {
		n = 0
	}
	s := &State{
		N:          n,
		Positions:  make([]float64, 3*n),
		Velocities: make([]float64, 3*n),
		Forces:     make([]float64, 3*n),
		Masses:     make([]float64, n),
		Charges:    make([]float64, n),
		Escaped:    make([]uint8, n),
	}
	Lattice(s.Positions, n, box)
	for i := 0; i < n; i++ {
		s.Masses[i] = 1
		s.Charges[i] = 1
		if i%2 == 1 {
			s.Charges[i] = -1
		}
	}
	return s
}

// Lattice writes the first n lattice sites of a cubic grid filling box into
// dst. Sites sit at cell centers, so no particle starts on a boundary.
func Lattice(dst []float64, n int, box pbc.Box) {
	if n == 0 {
		return
	}
	side := int(math.Ceil(math.Cbrt(float64(n))))
	for side*side*side < n {
		side++
	}
	var spacing [3]float64
	for a := 0; a < 3; a++ {
		spacing[a] = box.Length(a) / float64(side)
	}
	for i := 0; i < n; i++ {
		ix := i % side
		iy := (i / side) % side
		iz := i / (side * side)
		dst[3*i] = -box[0] + (float64(ix)+0.5)*spacing[0]
		dst[3*i+1] = -box[1] + (float64(iy)+0.5)*spacing[1]
		dst[3*i+2] = -box[2] + (float64(iz)+0.5)*spacing[2]
	}
}

// Resize returns a new state for n particles. The overlapping prefix of every
// buffer and the time are copied from s; particles beyond the old count get
// the defaults New would give them.
func (s *State) Resize(n int, box pbc.Box) *State {
	next := New(n, box)
	next.Time = s.Time
	copy(next.Positions, s.Positions)
	copy(next.Velocities, s.Velocities)
	copy(next.Masses, s.Masses)
	copy(next.Charges, s.Charges)
	copy(next.Escaped, s.Escaped)
	return next
}

// ZeroForces clears the force accumulator.
func (s *State) ZeroForces() {
	clear(s.Forces)
}

func (s *State) Clone() *State {
	return &State{
		N:          s.N,
		Time:       s.Time,
		Positions:  append([]float64(nil), s.Positions...),
		Velocities: append([]float64(nil), s.Velocities...),
		Forces:     append([]float64(nil), s.Forces...),
		Masses:     append([]float64(nil), s.Masses...),
		Charges:    append([]float64(nil), s.Charges...),
		Escaped:    append([]uint8(nil), s.Escaped...),
	}
}

// IsValid reports whether positions, velocities and forces are all finite.
func (s *State) IsValid() bool {
	for _, buf := range [][]float64{s.Positions, s.Velocities, s.Forces} {
		for _, v := range buf {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// SeedData carries optional replacement buffers. Nil fields are left alone;
// longer buffers are truncated to the state's size.
type SeedData struct {
	Positions  []float64
	Velocities []float64
	Masses     []float64
	Charges    []float64
}

// Seed copies the provided buffers into the existing allocations.
func (s *State) Seed(d SeedData) {
	if d.Positions != nil {
		copy(s.Positions, d.Positions)
	}
	if d.Velocities != nil {
		copy(s.Velocities, d.Velocities)
	}
	if d.Masses != nil {
		copy(s.Masses, d.Masses)
	}
	if d.Charges != nil {
		copy(s.Charges, d.Charges)
	}
}
