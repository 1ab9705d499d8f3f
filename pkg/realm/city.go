package realm

import "sort"

// CityGrade ranks a city; it sets production and starting garrison.
type CityGrade string

const (
	Capital    CityGrade = "capital"
	Major      CityGrade = "major"
	NormalCity CityGrade = "normal"
	Town       CityGrade = "town"
)

type gradeStats struct {
	gold, food   int
	troops       int
	defenseLevel int
}

var gradeTable = map[CityGrade]gradeStats{
	Capital:    {gold: 100, food: 80, troops: 500, defenseLevel: 3},
	Major:      {gold: 60, food: 50, troops: 300, defenseLevel: 2},
	NormalCity: {gold: 40, food: 30, troops: 200, defenseLevel: 1},
	Town:       {gold: 20, food: 20, troops: 100, defenseLevel: 0},
}

// InitialTroops returns the garrison a city of this grade is seeded with.
func (g CityGrade) InitialTroops() int { return gradeTable[g].troops }

// Specialty is a regional trade good.
type Specialty string

const (
	Silk   Specialty = "silk"
	Spices Specialty = "spices"
	Iron   Specialty = "iron"
	Wine   Specialty = "wine"
	Horses Specialty = "horses"
	Salt   Specialty = "salt"
)

// Specialties lists every specialty in a fixed order.
var Specialties = []Specialty{Silk, Spices, Iron, Wine, Horses, Salt}

// BuildingKind is a closed set of city improvements.
type BuildingKind string

const (
	Farm       BuildingKind = "farm"
	Market     BuildingKind = "market"
	Barracks   BuildingKind = "barracks"
	Walls      BuildingKind = "walls"
	Watchtower BuildingKind = "watchtower"
	SpyAcademy BuildingKind = "spy_academy"
	Harbor     BuildingKind = "harbor"
)

const maxBuildingLevel = 5

type buildingStats struct {
	cost  int
	turns int
}

var buildingTable = map[BuildingKind]buildingStats{
	Farm:       {cost: 100, turns: 2},
	Market:     {cost: 120, turns: 2},
	Barracks:   {cost: 150, turns: 3},
	Walls:      {cost: 200, turns: 3},
	Watchtower: {cost: 100, turns: 2},
	SpyAcademy: {cost: 250, turns: 3},
	Harbor:     {cost: 180, turns: 3},
}

// Cost returns the gold cost of one level.
func (b BuildingKind) Cost() int { return buildingTable[b].cost }

// Valid reports whether b is a known building kind.
func (b BuildingKind) Valid() bool {
	_, ok := buildingTable[b]
	return ok
}

const buildingMaxHP = 100

// Building is an improvement in a city. A building at zero HP gives no benefit.
type Building struct {
	Kind  BuildingKind `json:"kind"`
	Level int          `json:"level"`
	HP    int          `json:"hp"`
}

// BuildOrder is a queued construction.
type BuildOrder struct {
	Kind      BuildingKind `json:"kind"`
	TurnsLeft int          `json:"turnsLeft"`
}

const maxBuildQueue = 3

// City is a settlement whose 7-tile cluster shares its owner.
type City struct {
	ID         CityID                     `json:"id"`
	Name       string                     `json:"name"`
	Grade      CityGrade                  `json:"grade"`
	Owner      PlayerID                   `json:"owner"`
	Center     TileID                     `json:"center"`
	Population int                        `json:"population"`
	Happiness  int                        `json:"happiness"`
	TaxRate    float64                    `json:"taxRate"`
	Specialty  Specialty                  `json:"specialty,omitempty"`
	Stock      map[Specialty]int          `json:"stock,omitempty"`
	Buildings  map[BuildingKind]*Building `json:"buildings,omitempty"`
	BuildQueue []BuildOrder               `json:"buildQueue,omitempty"`
	Unrest     int                        `json:"unrest,omitempty"`
	Incited    bool                       `json:"incited,omitempty"`
}

// BuildingLevel returns the working level of a building, 0 if absent or wrecked.
func (c *City) BuildingLevel(kind BuildingKind) int {
	b := c.Buildings[kind]
	if b == nil || b.HP <= 0 {
		return 0
	}
	return b.Level
}

// DefenseLevel is the grade's base defense plus walls.
func (c *City) DefenseLevel() int {
	return gradeTable[c.Grade].defenseLevel + c.BuildingLevel(Walls)
}

// SpecialtyTotal sums the city's specialty stock.
func (c *City) SpecialtyTotal() int {
	n := 0
	for _, v := range c.Stock {
		n += v
	}
	return n
}

func (c *City) addHappiness(d int) {
	c.Happiness = clampInt(c.Happiness+d, 0, 100)
}

func (c *City) buildingKinds() []BuildingKind {
	var out []BuildingKind
	for k, b := range c.Buildings {
		if b.HP > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddCity founds a city centered on tile and claims its cluster for owner.
func (w *World) AddCity(name string, grade CityGrade, owner PlayerID, center TileID) *City {
	c := &City{
		ID:         CityID(w.NextID()),
		Name:       name,
		Grade:      grade,
		Owner:      owner,
		Center:     center,
		Population: 1000,
		Happiness:  60,
		TaxRate:    0.2,
		Stock:      make(map[Specialty]int),
		Buildings:  make(map[BuildingKind]*Building),
	}
	w.Cities = append(w.Cities, c)
	w.cityByID[c.ID] = c
	for _, t := range w.ClusterTiles(c) {
		t.City = c.ID
		t.Owner = owner
	}
	return c
}

// ClusterTiles returns the city's center tile and its existing neighbors.
func (w *World) ClusterTiles(c *City) []*Tile {
	center := w.Tile(c.Center)
	if center == nil {
		return nil
	}
	return append([]*Tile{center}, w.NeighborTiles(center)...)
}

// transferCity hands a city and its whole cluster to a new owner.
// A captured capital is demoted to a normal city.
func (w *World) transferCity(c *City, to PlayerID, conquered bool) {
	for _, t := range w.ClusterTiles(c) {
		if t.City == c.ID || t.City == 0 {
			t.Owner = to
			t.City = c.ID
		}
	}
	c.Owner = to
	c.Unrest = 0
	c.Incited = false
	if conquered && c.Grade == Capital {
		c.Grade = NormalCity
	}
}

// SpecialtyStock aggregates p's specialty stock across cities.
func (w *World) SpecialtyStock(p PlayerID) map[Specialty]int {
	out := make(map[Specialty]int)
	for _, c := range w.CitiesOf(p) {
		for s, n := range c.Stock {
			out[s] += n
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
