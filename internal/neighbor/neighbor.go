// Package neighbor enumerates interacting particle pairs.
//
// A Strategy hands every unordered pair i<j whose minimum-image separation is
// within the cutoff to a PairFunc exactly once. Two strategies exist: Naive,
// the O(N^2) reference, and Cell, a linked-cell grid that runs in O(N) for
// bounded densities. Force fields only see the Strategy interface, so the
// engine can swap implementations without touching them.
package neighbor

import (
	"errors"
	"fmt"

	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

// PairFunc receives i<j and the displacement d = x_i - x_j with r2 = |d|^2.
type PairFunc func(i, j int, dx, dy, dz, r2 float64)

type Strategy interface {
	Name() string
	// Rebuild refreshes any spatial index for the current positions.
	Rebuild(st *state.State, dom pbc.Domain, cutoff float64)
	ForEachPair(st *state.State, dom pbc.Domain, cutoff float64, fn PairFunc)
	// RebuildEveryStep reports whether the index goes stale when particles move.
	RebuildEveryStep() bool
}

const (
	NameNaive = "naive"
	NameCell  = "cell"
)

var ErrUnknownStrategy = errors.New("neighbor: unknown strategy")

// New returns a fresh strategy by name.
func New(name string) (Strategy, error) {
	switch name {
	case NameNaive:
		return NewNaive(), nil
	case NameCell:
		return NewCell(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Names lists the registered strategies.
func Names() []string { return []string{NameNaive, NameCell} }

// Naive checks every pair. It is the correctness oracle for Cell.
type Naive struct{}

func NewNaive() *Naive { return &Naive{} }

func (n *Naive) Name() string           { return NameNaive }
func (n *Naive) RebuildEveryStep() bool { return false }

func (n *Naive) Rebuild(*state.State, pbc.Domain, float64) {}

func (n *Naive) ForEachPair(st *state.State, dom pbc.Domain, cutoff float64, fn PairFunc) {
	c2 := cutoff * cutoff
	pos := st.Positions
	for i := 0; i < st.N; i++ {
		for j := i + 1; j < st.N; j++ {
			dx, dy, dz := pbc.Displacement(pos, i, j, dom)
			r2 := dx*dx + dy*dy + dz*dz
			if r2 > c2 {
				continue
			}
			fn(i, j, dx, dy, dz, r2)
		}
	}
}
