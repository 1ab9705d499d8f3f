package realm

// Hex is an axial hex-grid coordinate. The third cube coordinate is -Q-R.
type Hex struct {
	Q int `json:"q"`
	R int `json:"r"`
}

var hexDirections = [6]Hex{
	{1, 0}, {1, -1}, {0, -1},
	{-1, 0}, {-1, 1}, {0, 1},
}

// S returns the implicit cube coordinate.
func (h Hex) S() int { return -h.Q - h.R }

// Add returns the component-wise sum of two coordinates.
func (h Hex) Add(o Hex) Hex { return Hex{Q: h.Q + o.Q, R: h.R + o.R} }

// Neighbors returns the six adjacent coordinates in a fixed order.
func (h Hex) Neighbors() [6]Hex {
	var out [6]Hex
	for i, d := range hexDirections {
		out[i] = h.Add(d)
	}
	return out
}

// HexDistance returns the number of steps between two coordinates.
func HexDistance(a, b Hex) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// Ring returns the coordinates at exactly radius steps from h.
func (h Hex) Ring(radius int) []Hex {
	if radius <= 0 {
		return []Hex{h}
	}
	out := make([]Hex, 0, 6*radius)
	cur := Hex{Q: h.Q + hexDirections[4].Q*radius, R: h.R + hexDirections[4].R*radius}
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, cur)
			cur = cur.Add(hexDirections[side])
		}
	}
	return out
}

// WithinRadius returns every coordinate at distance <= radius, center first.
func (h Hex) WithinRadius(radius int) []Hex {
	out := []Hex{h}
	for r := 1; r <= radius; r++ {
		out = append(out, h.Ring(r)...)
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
