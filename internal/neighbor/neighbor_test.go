package neighbor

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

type pair struct{ i, j int }

func collect(s Strategy, st *state.State, dom pbc.Domain, cutoff float64) []pair {
	s.Rebuild(st, dom, cutoff)
	var pairs []pair
	s.ForEachPair(st, dom, cutoff, func(i, j int, dx, dy, dz, r2 float64) {
		pairs = append(pairs, pair{i, j})
	})
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].i != pairs[b].i {
			return pairs[a].i < pairs[b].i
		}
		return pairs[a].j < pairs[b].j
	})
	return pairs
}

func collinear() *state.State {
	st := state.New(5, pbc.Box{10, 10, 10})
	for i := 0; i < 5; i++ {
		st.Positions[3*i] = float64(i)
		st.Positions[3*i+1] = 0
		st.Positions[3*i+2] = 0
	}
	return st
}

func randomState(n int, box pbc.Box, seed int64) *state.State {
	st := state.New(n, box)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		for a := 0; a < 3; a++ {
			st.Positions[3*i+a] = (rng.Float64()*2 - 1) * box[a]
		}
	}
	return st
}

func TestCollinearPairs(t *testing.T) {
	dom := pbc.Domain{Half: pbc.Box{10, 10, 10}}
	tests := []struct {
		cutoff float64
		want   int
	}{
		{100, 10},
		{1.5, 4},
	}

	for _, name := range Names() {
		for _, tt := range tests {
			s, err := New(name)
			if err != nil {
				t.Fatal(err)
			}
			pairs := collect(s, collinear(), dom, tt.cutoff)
			if len(pairs) != tt.want {
				t.Errorf("%s cutoff=%v: got %d pairs, want %d", name, tt.cutoff, len(pairs), tt.want)
			}
			for k, p := range pairs {
				if p.i >= p.j {
					t.Errorf("%s: pair %v not ordered", name, p)
				}
				if k > 0 && pairs[k-1] == p {
					t.Errorf("%s: duplicate pair %v", name, p)
				}
				if tt.cutoff == 1.5 && p.j != p.i+1 {
					t.Errorf("%s: non-adjacent pair %v within cutoff 1.5", name, p)
				}
			}
		}
	}
}

func TestCellMatchesNaive(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		box    pbc.Box
		cutoff float64
	}{
		{"dense cubic", 200, pbc.Box{5, 5, 5}, 1.2},
		{"sparse cubic", 150, pbc.Box{20, 20, 20}, 2.5},
		{"slab", 120, pbc.Box{10, 10, 1.5}, 1.1},
		{"single cell", 40, pbc.Box{2, 2, 2}, 3.0},
		{"two cells per axis", 60, pbc.Box{3, 3, 3}, 2.9},
		{"three cells per axis", 80, pbc.Box{3, 3, 3}, 2.0},
	}

	for _, tt := range tests {
		for _, periodic := range []bool{false, true} {
			dom := pbc.Domain{Half: tt.box, Periodic: periodic}
			st := randomState(tt.n, tt.box, int64(tt.n))

			want := collect(NewNaive(), st, dom, tt.cutoff)
			got := collect(NewCell(), st, dom, tt.cutoff)

			if len(got) != len(want) {
				t.Errorf("%s periodic=%v: cell found %d pairs, naive %d", tt.name, periodic, len(got), len(want))
				continue
			}
			for k := range want {
				if got[k] != want[k] {
					t.Errorf("%s periodic=%v: pair %d differs: %v vs %v", tt.name, periodic, k, got[k], want[k])
					break
				}
			}
		}
	}
}

func TestCellParticlesOutsideBox(t *testing.T) {
	box := pbc.Box{4, 4, 4}
	st := randomState(50, box, 7)
	for i := 0; i < 10; i++ {
		st.Positions[3*i] += 9
	}

	dom := pbc.Domain{Half: box}
	want := collect(NewNaive(), st, dom, 1.5)
	got := collect(NewCell(), st, dom, 1.5)
	if len(got) != len(want) {
		t.Fatalf("escaped particles: cell %d pairs, naive %d", len(got), len(want))
	}
}

func TestPairInvariants(t *testing.T) {
	box := pbc.Box{6, 6, 6}
	st := randomState(300, box, 11)
	cutoff := 1.7

	for _, periodic := range []bool{false, true} {
		dom := pbc.Domain{Half: box, Periodic: periodic}
		for _, name := range Names() {
			s, _ := New(name)
			seen := make(map[pair]bool)
			s.Rebuild(st, dom, cutoff)
			s.ForEachPair(st, dom, cutoff, func(i, j int, dx, dy, dz, r2 float64) {
				p := pair{i, j}
				if i >= j {
					t.Errorf("%s: yielded i>=j %v", name, p)
				}
				if seen[p] {
					t.Errorf("%s: duplicate %v", name, p)
				}
				seen[p] = true

				ex, ey, ez := pbc.Displacement(st.Positions, i, j, dom)
				trueR2 := ex*ex + ey*ey + ez*ez
				if trueR2 > cutoff*cutoff {
					t.Errorf("%s: pair %v beyond cutoff (r=%v)", name, p, math.Sqrt(trueR2))
				}
				if math.Abs(trueR2-r2) > 1e-12 {
					t.Errorf("%s: r2 mismatch %v vs %v", name, r2, trueR2)
				}
			})
		}
	}
}

func TestCellRebuildsOnStaleTuple(t *testing.T) {
	box := pbc.Box{5, 5, 5}
	dom := pbc.Domain{Half: box}
	cell := NewCell()

	small := randomState(20, box, 3)
	cell.Rebuild(small, dom, 1.0)

	large := randomState(120, box, 4)
	var got []pair
	cell.ForEachPair(large, dom, 2.0, func(i, j int, dx, dy, dz, r2 float64) {
		got = append(got, pair{i, j})
	})
	want := collect(NewNaive(), large, dom, 2.0)

	if len(got) != len(want) {
		t.Fatalf("stale cell list: %d pairs, want %d", len(got), len(want))
	}
	if len(cell.Data.Next) != 120 {
		t.Errorf("next arena = %d, want 120", len(cell.Data.Next))
	}
}

func TestCellLayout(t *testing.T) {
	cell := NewCell()
	st := randomState(100, pbc.Box{5, 5, 2}, 1)
	cell.Rebuild(st, pbc.Domain{Half: pbc.Box{5, 5, 2}}, 1.0)

	d := cell.Data
	if d.Dims != [3]int{10, 10, 4} {
		t.Errorf("dims = %v, want [10 10 4]", d.Dims)
	}
	for a := 0; a < 3; a++ {
		if d.CellSize[a] < 1.0 {
			t.Errorf("cell edge %d = %v below cutoff", a, d.CellSize[a])
		}
	}

	count := 0
	for _, h := range d.Heads {
		for i := h; i >= 0; i = d.Next[i] {
			count++
		}
	}
	if count != 100 {
		t.Errorf("lists hold %d particles, want 100", count)
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("octree"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}
