// Package sandbox builds playable worlds from layered simplex noise for
// local simulations and fresh rooms.
package sandbox

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Nation is one seat of a generated world.
type Nation struct {
	Name       string
	IsAI       bool
	Difficulty realm.Difficulty
	UserID     string
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius      int
	Seed        int64
	SeaLevel    float64
	MountainLvl float64
	Nations     []Nation
	StartGold   int
	StartFood   int
	// CitiesPerNation counts cities besides the capital.
	CitiesPerNation int
}

// DefaultGenConfig returns a four-nation map, one human and three AIs.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      10,
		Seed:        42,
		SeaLevel:    0.28,
		MountainLvl: 0.74,
		Nations: []Nation{
			{Name: "Aria"},
			{Name: "Boros", IsAI: true, Difficulty: realm.Easy},
			{Name: "Cyra", IsAI: true, Difficulty: realm.Normal},
			{Name: "Dunmar", IsAI: true, Difficulty: realm.Hard},
		},
		StartGold:       1500,
		StartFood:       1200,
		CitiesPerNation: 2,
	}
}

var ErrTooManyNations = errors.New("map too small for nations")

// Generate creates a room world with noise terrain, one capital per nation
// spread around the map and a few secondary cities.
func Generate(roomID, name string, cfg GenConfig) (*realm.World, error) {
	if len(cfg.Nations) < 2 {
		return nil, fmt.Errorf("need at least 2 nations, got %d", len(cfg.Nations))
	}
	if cfg.Radius < 2*len(cfg.Nations)/3+3 {
		return nil, fmt.Errorf("%w: radius %d, %d nations", ErrTooManyNations, cfg.Radius, len(cfg.Nations))
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	w := realm.NewWorld(realm.Room{
		ID:        roomID,
		Name:      name,
		Status:    realm.RoomPlaying,
		Turn:      1,
		Seed:      seed,
		Config:    realm.DefaultRoomConfig(),
		CreatedAt: time.Now().UTC(),
	})
	paintTerrain(w, cfg, seed)

	for i, n := range cfg.Nations {
		p := w.AddPlayer(realm.Player{
			Name:       n.Name,
			Nation:     n.Name,
			Gold:       cfg.StartGold,
			Food:       cfg.StartFood,
			IsAI:       n.IsAI,
			Difficulty: n.Difficulty,
			UserID:     n.UserID,
		})
		angle := 2 * math.Pi * float64(i) / float64(len(cfg.Nations))
		home := polar(angle, float64(cfg.Radius)*0.65)
		if err := foundCity(w, rng, p.ID, fmt.Sprintf("%s Capital", n.Name), realm.Capital, home); err != nil {
			return nil, err
		}
		for j := 0; j < cfg.CitiesPerNation; j++ {
			grade := realm.NormalCity
			if j == 0 {
				grade = realm.Major
			}
			off := angle + float64(j*2-1)*0.45
			spot := polar(off, float64(cfg.Radius)*0.35+float64(j))
			if err := foundCity(w, rng, p.ID, fmt.Sprintf("%s %d", n.Name, j+1), grade, spot); err != nil {
				return nil, err
			}
		}
	}
	w.Reindex()
	return w, nil
}

func paintTerrain(w *realm.World, cfg GenConfig, seed int64) {
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)

	for _, h := range (realm.Hex{}).WithinRadius(cfg.Radius) {
		x := float64(h.Q) + float64(h.R)*0.5
		y := float64(h.R) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
		rain := octaveNoise(rainNoise, x, y, 3, 0.07, 0.5)

		// Reduce elevation near the rim so the continent is ringed by sea.
		dist := math.Sqrt(x*x+y*y) / float64(cfg.Radius)
		elev *= math.Max(0, 1.0-math.Pow(dist, 4))
		if realm.HexDistance(h, realm.Hex{}) == cfg.Radius {
			elev = 0
		}
		w.AddTile(h, deriveTerrain(elev, rain, cfg))
	}
}

func deriveTerrain(elev, rain float64, cfg GenConfig) realm.Terrain {
	switch {
	case elev < cfg.SeaLevel:
		return realm.Sea
	case elev < cfg.SeaLevel+0.04:
		return realm.Coast
	case elev > cfg.MountainLvl:
		return realm.Mountain
	case elev > cfg.MountainLvl-0.08:
		return realm.Hill
	case rain < 0.3:
		return realm.Desert
	case rain > 0.72 && elev < 0.45:
		return realm.Swamp
	case rain > 0.55:
		return realm.Forest
	case rain > 0.42:
		return realm.Grassland
	}
	return realm.Plains
}

// foundCity places a city on the nearest free tile to target, turning its
// cluster into land.
func foundCity(w *realm.World, rng *rand.Rand, owner realm.PlayerID, name string, grade realm.CityGrade, target realm.Hex) error {
	site := nearestFreeSite(w, target)
	if site == nil {
		return fmt.Errorf("%w: no site for %s", ErrTooManyNations, name)
	}
	site.Terrain = realm.Plains
	for _, n := range w.NeighborTiles(site) {
		if n.Terrain.IsWater() || n.Terrain == realm.Mountain {
			n.Terrain = realm.Grassland
		}
	}
	c := w.AddCity(name, grade, owner, site.ID)
	c.Specialty = realm.Specialties[rng.Intn(len(realm.Specialties))]
	w.AddUnits(owner, site.ID, realm.Infantry, grade.InitialTroops(), c.ID)
	return nil
}

// nearestFreeSite scans rings outward from target for a tile whose cluster
// touches no other city.
func nearestFreeSite(w *realm.World, target realm.Hex) *realm.Tile {
	for radius := 0; radius <= 12; radius++ {
		for _, h := range target.Ring(radius) {
			t := w.TileAt(h)
			if t == nil || len(w.NeighborTiles(t)) < 6 || !isolated(w, t) {
				continue
			}
			return t
		}
	}
	return nil
}

// isolated reports whether no tile within two hexes belongs to a city.
func isolated(w *realm.World, t *realm.Tile) bool {
	for _, n := range w.TilesWithin(t.Coord, 2) {
		if n.City != 0 {
			return false
		}
	}
	return true
}

func polar(angle, r float64) realm.Hex {
	x, y := r*math.Cos(angle), r*math.Sin(angle)
	return roundHex(math.Sqrt(3)/3*x-y/3, 2.0/3*y)
}

func roundHex(q, r float64) realm.Hex {
	s := -q - r
	rq, rr, rs := math.Round(q), math.Round(r), math.Round(s)
	dq, dr, ds := math.Abs(rq-q), math.Abs(rr-r), math.Abs(rs-s)
	if dq > dr && dq > ds {
		rq = -rr - rs
	} else if dr > ds {
		rr = -rq - rs
	}
	return realm.Hex{Q: int(rq), R: int(rr)}
}

// octaveNoise layers several frequencies of noise.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
