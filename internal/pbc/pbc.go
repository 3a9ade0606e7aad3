// Package pbc implements periodic boundary helpers: wrapping coordinates back
// into the simulation box and the minimum-image convention for displacements.
//
// Boxes are described by their half-extents, so the domain along axis a is
// [-half[a], half[a]].
package pbc

import "math"

// Box holds the half-extents of the simulation domain along x, y and z.
type Box [3]float64

// Length returns the full edge length along axis a.
func (b Box) Length(a int) float64 { return 2 * b[a] }

// Volume returns the full box volume.
func (b Box) Volume() float64 {
	return b.Length(0) * b.Length(1) * b.Length(2)
}

// Domain couples a box with its boundary mode.
type Domain struct {
	Half     Box
	Periodic bool
}

// WrapIntoBox shifts v by multiples of 2*half until it lies in [-half, half].
// Works for arbitrarily large excursions.
func WrapIntoBox(v, half float64) float64 {
	if half <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	l := 2 * half
	if v > half {
		v -= l * math.Ceil((v-half)/l)
	} else if v < -half {
		v += l * math.Ceil((-half-v)/l)
	}
	// guard the floating-point edge where the shift lands one ulp outside
	for v > half {
		v -= l
	}
	for v < -half {
		v += l
	}
	return v
}

// MinimumImage applies a single +-2*half correction. Separations are assumed
// to be at most one box length away from the nearest image.
func MinimumImage(d, half float64) float64 {
	if d > half {
		return d - 2*half
	}
	if d < -half {
		return d + 2*half
	}
	return d
}

// Displacement returns x_i - x_j for particles i and j in the flat positions
// buffer, using the minimum image when the domain is periodic.
func Displacement(pos []float64, i, j int, dom Domain) (dx, dy, dz float64) {
	dx = pos[3*i] - pos[3*j]
	dy = pos[3*i+1] - pos[3*j+1]
	dz = pos[3*i+2] - pos[3*j+2]
	if dom.Periodic {
		dx = MinimumImage(dx, dom.Half[0])
		dy = MinimumImage(dy, dom.Half[1])
		dz = MinimumImage(dz, dom.Half[2])
	}
	return dx, dy, dz
}

// MarkEscaped sets escaped[i] to 1 for every particle outside the box and
// returns the number of newly flagged particles. Flags are sticky.
func MarkEscaped(pos []float64, escaped []uint8, half Box) int {
	n := len(escaped)
	if len(pos)/3 < n {
		n = len(pos) / 3
	}
	marked := 0
	for i := 0; i < n; i++ {
		if escaped[i] != 0 {
			continue
		}
		for a := 0; a < 3; a++ {
			if math.Abs(pos[3*i+a]) > half[a] {
				escaped[i] = 1
				marked++
				break
			}
		}
	}
	return marked
}
