package pbc

var axisNames = [3]string{"x", "y", "z"}

// Crossing describes one boundary crossing along a single axis. Exit lies on
// the plane the particle left through, Entry on the opposite plane.
type Crossing struct {
	Axis  int        `json:"axis"`
	Exit  [3]float64 `json:"exit"`
	Entry [3]float64 `json:"entry"`
}

// WrapRecord is emitted for a particle whose position was wrapped this step.
// DX, DY, DZ hold the shift that was applied.
type WrapRecord struct {
	I         int        `json:"i"`
	DX        float64    `json:"dx"`
	DY        float64    `json:"dy"`
	DZ        float64    `json:"dz"`
	Surfaces  []string   `json:"surfaces"`
	Crossings []Crossing `json:"crossings"`
}

// WrapPositions wraps every position into the box in place and returns a
// record for each particle that crossed at least one boundary. Particles that
// stayed inside produce no record and no allocation.
func WrapPositions(pos []float64, half Box) []WrapRecord {
	var records []WrapRecord
	n := len(pos) / 3
	for i := 0; i < n; i++ {
		p := pos[3*i : 3*i+3]
		if inside(p, half) {
			continue
		}

		before := [3]float64{p[0], p[1], p[2]}
		rec := WrapRecord{I: i}
		for a := 0; a < 3; a++ {
			v := p[a]
			if v >= -half[a] && v <= half[a] {
				continue
			}
			exit, entry := before, before
			sign := "+"
			if v > half[a] {
				exit[a], entry[a] = half[a], -half[a]
			} else {
				sign = "-"
				exit[a], entry[a] = -half[a], half[a]
			}
			p[a] = WrapIntoBox(v, half[a])
			rec.Surfaces = append(rec.Surfaces, sign+axisNames[a])
			rec.Crossings = append(rec.Crossings, Crossing{Axis: a, Exit: exit, Entry: entry})
		}
		rec.DX = p[0] - before[0]
		rec.DY = p[1] - before[1]
		rec.DZ = p[2] - before[2]
		records = append(records, rec)
	}
	return records
}

func inside(p []float64, half Box) bool {
	return p[0] >= -half[0] && p[0] <= half[0] &&
		p[1] >= -half[1] && p[1] <= half[1] &&
		p[2] >= -half[2] && p[2] <= half[2]
}
