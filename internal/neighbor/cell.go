package neighbor

import (
	"math"

	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

// maxCellsPerParticle bounds the grid for tiny cutoffs. Coarser cells stay
// correct because every edge remains at least the cutoff.
const maxCellsPerParticle = 8

// CellListData is a linked list per grid cell stored as two index arenas:
// Heads[c] is the first particle in cell c and Next[i] the particle after i,
// with -1 terminating both.
type CellListData struct {
	CellSize [3]float64
	Dims     [3]int
	Heads    []int32
	Next     []int32
}

type cellKey struct {
	n        int
	cutoff   float64
	half     pbc.Box
	periodic bool
}

// Cell is the linked-cell strategy. The grid is sized so every cell edge is at
// least the cutoff; any pair within the cutoff therefore shares a cell or sits
// in Moore-adjacent cells.
type Cell struct {
	Data  CellListData
	key   cellKey
	built bool
	neigh [27]int
}

func NewCell() *Cell { return &Cell{} }

func (c *Cell) Name() string           { return NameCell }
func (c *Cell) RebuildEveryStep() bool { return true }

// Rebuild bins every particle into its cell. Buffers are reused while the
// (N, cutoff, box, periodic) tuple is unchanged and resized otherwise.
func (c *Cell) Rebuild(st *state.State, dom pbc.Domain, cutoff float64) {
	key := cellKey{n: st.N, cutoff: cutoff, half: dom.Half, periodic: dom.Periodic}
	if !c.built || key != c.key {
		c.layout(key)
	}

	d := &c.Data
	for i := range d.Heads {
		d.Heads[i] = -1
	}
	pos := st.Positions
	for i := 0; i < st.N; i++ {
		cx := c.coord(pos[3*i], 0, dom)
		cy := c.coord(pos[3*i+1], 1, dom)
		cz := c.coord(pos[3*i+2], 2, dom)
		idx := c.index(cx, cy, cz)
		d.Next[i] = d.Heads[idx]
		d.Heads[idx] = int32(i)
	}
}

func (c *Cell) layout(key cellKey) {
	d := &c.Data
	total := 1
	for a := 0; a < 3; a++ {
		dims := 1
		if key.cutoff > 0 {
			dims = int(math.Floor(2 * key.half[a] / key.cutoff))
		}
		if dims < 1 {
			dims = 1
		}
		d.Dims[a] = dims
		total *= dims
	}

	limit := maxCellsPerParticle * key.n
	if limit < 64 {
		limit = 64
	}
	for total > limit {
		largest := 0
		for a := 1; a < 3; a++ {
			if d.Dims[a] > d.Dims[largest] {
				largest = a
			}
		}
		total /= d.Dims[largest]
		d.Dims[largest] = (d.Dims[largest] + 1) / 2
		total *= d.Dims[largest]
	}

	for a := 0; a < 3; a++ {
		d.CellSize[a] = 2 * key.half[a] / float64(d.Dims[a])
	}

	if cap(d.Heads) >= total {
		d.Heads = d.Heads[:total]
	} else {
		d.Heads = make([]int32, total)
	}
	if cap(d.Next) >= key.n {
		d.Next = d.Next[:key.n]
	} else {
		d.Next = make([]int32, key.n)
	}
	c.key = key
	c.built = true
}

func (c *Cell) coord(v float64, a int, dom pbc.Domain) int {
	dims := c.Data.Dims[a]
	size := c.Data.CellSize[a]
	if dims == 1 || size <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	u := (v + dom.Half[a]) / size
	if dom.Periodic {
		u = math.Mod(u, float64(dims))
		if u < 0 {
			u += float64(dims)
		}
		k := int(u)
		if k >= dims {
			k = dims - 1
		}
		return k
	}
	if u < 0 {
		return 0
	}
	if u >= float64(dims) {
		return dims - 1
	}
	return int(u)
}

func (c *Cell) index(x, y, z int) int {
	return (z*c.Data.Dims[1]+y)*c.Data.Dims[0] + x
}

// ForEachPair walks every populated cell and its neighborhood. A neighbor cell
// with a lower index than the base is skipped since that pairing was visited
// from the other side; within one cell each particle pairs only with those
// after it in the list.
func (c *Cell) ForEachPair(st *state.State, dom pbc.Domain, cutoff float64, fn PairFunc) {
	key := cellKey{n: st.N, cutoff: cutoff, half: dom.Half, periodic: dom.Periodic}
	if !c.built || key != c.key {
		c.Rebuild(st, dom, cutoff)
	}

	d := &c.Data
	c2 := cutoff * cutoff
	pos := st.Positions

	emit := func(a, b int32) {
		i, j := int(a), int(b)
		if i > j {
			i, j = j, i
		}
		dx, dy, dz := pbc.Displacement(pos, i, j, dom)
		r2 := dx*dx + dy*dy + dz*dz
		if r2 > c2 {
			return
		}
		fn(i, j, dx, dy, dz, r2)
	}

	for cz := 0; cz < d.Dims[2]; cz++ {
		for cy := 0; cy < d.Dims[1]; cy++ {
			for cx := 0; cx < d.Dims[0]; cx++ {
				base := c.index(cx, cy, cz)
				if d.Heads[base] < 0 {
					continue
				}
				count := c.neighborhood(cx, cy, cz, base, dom.Periodic)
				for k := 0; k < count; k++ {
					nb := c.neigh[k]
					if nb == base {
						for a := d.Heads[base]; a >= 0; a = d.Next[a] {
							for b := d.Next[a]; b >= 0; b = d.Next[b] {
								emit(a, b)
							}
						}
						continue
					}
					for a := d.Heads[base]; a >= 0; a = d.Next[a] {
						for b := d.Heads[nb]; b >= 0; b = d.Next[b] {
							emit(a, b)
						}
					}
				}
			}
		}
	}
}

// neighborhood fills c.neigh with the distinct cells adjacent to (cx,cy,cz),
// including itself, whose index is not below base.
func (c *Cell) neighborhood(cx, cy, cz, base int, periodic bool) int {
	d := &c.Data
	count := 0
	for oz := -1; oz <= 1; oz++ {
		z, ok := shift(cz, oz, d.Dims[2], periodic)
		if !ok {
			continue
		}
		for oy := -1; oy <= 1; oy++ {
			y, ok := shift(cy, oy, d.Dims[1], periodic)
			if !ok {
				continue
			}
			for ox := -1; ox <= 1; ox++ {
				x, ok := shift(cx, ox, d.Dims[0], periodic)
				if !ok {
					continue
				}
				nb := c.index(x, y, z)
				if nb < base {
					continue
				}
				dup := false
				for k := 0; k < count; k++ {
					if c.neigh[k] == nb {
						dup = true
						break
					}
				}
				if !dup {
					c.neigh[count] = nb
					count++
				}
			}
		}
	}
	return count
}

func shift(c, o, dims int, periodic bool) (int, bool) {
	v := c + o
	if v >= 0 && v < dims {
		return v, true
	}
	if !periodic {
		return 0, false
	}
	return (v%dims + dims) % dims, true
}
