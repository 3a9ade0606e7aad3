package state

import (
	"math"
	"math/rand"
)

// Thermalize draws Maxwell-Boltzmann velocities at temperature T, removes the
// centre-of-mass drift, and rescales so the instantaneous temperature equals
// T exactly.
func (s *State) Thermalize(T, kB float64, seed int64) {
	if s.N < 2 || T <= 0 || kB <= 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < s.N; i++ {
		sigma := math.Sqrt(kB * T / s.Masses[i])
		for a := 0; a < 3; a++ {
			s.Velocities[3*i+a] = rng.NormFloat64() * sigma
		}
	}
	s.RemoveDrift()

	ke := 0.0
	for i := 0; i < s.N; i++ {
		vx, vy, vz := s.Velocities[3*i], s.Velocities[3*i+1], s.Velocities[3*i+2]
		ke += 0.5 * s.Masses[i] * (vx*vx + vy*vy + vz*vz)
	}
	current := 2 * ke / (kB * float64(3*s.N-3))
	if current <= 0 {
		return
	}
	scale := math.Sqrt(T / current)
	for i := range s.Velocities {
		s.Velocities[i] *= scale
	}
}

// RemoveDrift subtracts the centre-of-mass velocity from every particle.
func (s *State) RemoveDrift() {
	var p [3]float64
	total := 0.0
	for i := 0; i < s.N; i++ {
		m := s.Masses[i]
		total += m
		for a := 0; a < 3; a++ {
			p[a] += m * s.Velocities[3*i+a]
		}
	}
	if total == 0 {
		return
	}
	for i := 0; i < s.N; i++ {
		for a := 0; a < 3; a++ {
			s.Velocities[3*i+a] -= p[a] / total
		}
	}
}

// Momentum returns the total linear momentum.
func (s *State) Momentum() (px, py, pz float64) {
	for i := 0; i < s.N; i++ {
		m := s.Masses[i]
		px += m * s.Velocities[3*i]
		py += m * s.Velocities[3*i+1]
		pz += m * s.Velocities[3*i+2]
	}
	return
}
