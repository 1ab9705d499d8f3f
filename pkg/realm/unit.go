package realm

import "sort"

// UnitType is one of the six kinds of troops.
type UnitType string

const (
	Infantry UnitType = "infantry"
	Archer   UnitType = "archer"
	Cavalry  UnitType = "cavalry"
	Siege    UnitType = "siege"
	Navy     UnitType = "navy"
	Spy      UnitType = "spy"
)

// CombatTypes are the unit types that fight and move in groups, in a fixed order.
var CombatTypes = []UnitType{Infantry, Archer, Cavalry, Siege, Navy}

type unitStats struct {
	movement int
	attack   float64
	defense  float64
	cost     int
}

var unitTable = map[UnitType]unitStats{
	Infantry: {movement: 2, attack: 10, defense: 12, cost: 2},
	Archer:   {movement: 2, attack: 12, defense: 8, cost: 3},
	Cavalry:  {movement: 4, attack: 15, defense: 9, cost: 4},
	Siege:    {movement: 1, attack: 20, defense: 4, cost: 6},
	Navy:     {movement: 3, attack: 12, defense: 10, cost: 5},
	Spy:      {movement: 3},
}

// MovementPoints returns the per-turn movement budget of the type.
func (u UnitType) MovementPoints() int { return unitTable[u].movement }

// Attack returns the base attack coefficient.
func (u UnitType) Attack() float64 { return unitTable[u].attack }

// Defense returns the base defense coefficient.
func (u UnitType) Defense() float64 { return unitTable[u].defense }

// Cost returns the gold cost of recruiting one unit.
func (u UnitType) Cost() int { return unitTable[u].cost }

// Valid reports whether u is a known unit type.
func (u UnitType) Valid() bool {
	_, ok := unitTable[u]
	return ok
}

// Fights reports whether the type takes part in combat.
func (u UnitType) Fights() bool { return u.Valid() && u != Spy }

// beats is the counter cycle: infantry > cavalry > archer > infantry.
var beats = map[UnitType]UnitType{
	Infantry: Cavalry,
	Cavalry:  Archer,
	Archer:   Infantry,
}

const (
	counterFavored    = 1.3
	counterDisfavored = 0.8
)

// counterAgainst returns the matchup multiplier of a against b.
func counterAgainst(a, b UnitType) float64 {
	if beats[a] == b {
		return counterFavored
	}
	if beats[b] == a {
		return counterDisfavored
	}
	return 1.0
}

// counterModifier weights the matchup of t against an opposing composition.
func counterModifier(t UnitType, opposing map[UnitType]int) float64 {
	total := 0
	for _, c := range opposing {
		total += c
	}
	if total == 0 {
		return 1.0
	}
	mod := 0.0
	for _, ot := range Troops(opposing).Types() {
		mod += float64(opposing[ot]) / float64(total) * counterAgainst(t, ot)
	}
	return mod
}

// CanEnter reports whether a unit of type u may stand on terrain t.
func (u UnitType) CanEnter(t Terrain) bool {
	switch u {
	case Navy:
		return t == Sea || t == Coast
	case Siege:
		return t != Mountain && t != Sea
	default:
		return t != Sea
	}
}

// Unit is a stack of one unit type owned by one player on one tile.
type Unit struct {
	ID         UnitID   `json:"id"`
	Owner      PlayerID `json:"owner"`
	Tile       TileID   `json:"tile"`
	Origin     CityID   `json:"origin,omitempty"`
	Type       UnitType `json:"type"`
	Count      int      `json:"count"`
	Experience int      `json:"experience,omitempty"`
	Morale     int      `json:"morale"`
}

// Troops maps unit types to counts.
type Troops map[UnitType]int

// Total returns the summed count.
func (t Troops) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Types returns the types with a positive count in a stable order.
func (t Troops) Types() []UnitType {
	var out []UnitType
	for _, ut := range CombatTypes {
		if t[ut] > 0 {
			out = append(out, ut)
		}
	}
	return out
}

func (t Troops) clone() Troops {
	out := make(Troops, len(t))
	for k, v := range t {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (t Troops) add(o Troops) {
	for k, v := range o {
		t[k] += v
	}
}

func sortUnits(us []*Unit) {
	sort.Slice(us, func(i, j int) bool { return us[i].ID < us[j].ID })
}
