package realm

// Terrain is the kind of land (or water) on a tile.
type Terrain string

const (
	Plains    Terrain = "plains"
	Grassland Terrain = "grassland"
	Coast     Terrain = "coast"
	Desert    Terrain = "desert"
	Forest    Terrain = "forest"
	Hill      Terrain = "hill"
	Swamp     Terrain = "swamp"
	Mountain  Terrain = "mountain"
	Sea       Terrain = "sea"
)

// Terrains lists every terrain kind.
var Terrains = []Terrain{Plains, Grassland, Coast, Desert, Forest, Hill, Swamp, Mountain, Sea}

// MinMoveCost is the cheapest cost of entering any tile.
const MinMoveCost = 1.0

// MoveCost is the movement-point cost of entering a tile of this terrain.
func (t Terrain) MoveCost() float64 {
	switch t {
	case Plains, Grassland, Coast, Sea:
		return 1.0
	case Desert:
		return 1.2
	case Forest, Hill:
		return 1.5
	case Swamp:
		return 1.8
	case Mountain:
		return 2.0
	}
	return 1.0
}

// attackModifier scales attacker power fighting on this terrain.
func (t Terrain) attackModifier() float64 {
	switch t {
	case Swamp:
		return 0.85
	case Mountain:
		return 0.9
	case Forest:
		return 0.95
	}
	return 1.0
}

// defenseModifier scales defender power fighting on this terrain.
func (t Terrain) defenseModifier() float64 {
	switch t {
	case Mountain:
		return 1.4
	case Hill:
		return 1.25
	case Forest:
		return 1.2
	case Swamp:
		return 0.9
	case Desert:
		return 0.95
	}
	return 1.0
}

// IsWater reports whether only navies may stand on this terrain.
func (t Terrain) IsWater() bool { return t == Sea }

// Valid reports whether t is a known terrain kind.
func (t Terrain) Valid() bool {
	for _, k := range Terrains {
		if k == t {
			return true
		}
	}
	return false
}
