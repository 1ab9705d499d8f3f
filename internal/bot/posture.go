package bot

import (
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Posture is another player's military stance toward us.
type Posture string

const (
	PostureAggressive Posture = "aggressive" // troops massed near our cities
	PostureNeutral    Posture = "neutral"
	PostureDistant    Posture = "distant" // nothing near our cities
)

const (
	threatRadius    = 3
	threatThreshold = 500
)

// ClassifyPostures compares how much of each rival's army stands within
// threatRadius of our cities against its total army.
func ClassifyPostures(w *realm.World, p realm.PlayerID) map[realm.PlayerID]Posture {
	border := borderZone(w, p)

	type stats struct{ near, total int }
	byPlayer := make(map[realm.PlayerID]*stats)
	for _, u := range w.Units {
		if u.Owner == p || u.Owner == 0 || !u.Type.Fights() {
			continue
		}
		s, ok := byPlayer[u.Owner]
		if !ok {
			s = &stats{}
			byPlayer[u.Owner] = s
		}
		s.total += u.Count
		if border[u.Tile] {
			s.near += u.Count
		}
	}

	out := make(map[realm.PlayerID]Posture)
	for o, s := range byPlayer {
		if s.total == 0 {
			continue
		}
		ratio := float64(s.near) / float64(s.total)
		switch {
		case ratio >= 0.4 && !w.Friendly(p, o):
			out[o] = PostureAggressive
		case ratio == 0:
			out[o] = PostureDistant
		default:
			out[o] = PostureNeutral
		}
	}
	return out
}

// borderZone is every tile within threatRadius of one of p's cities.
func borderZone(w *realm.World, p realm.PlayerID) map[realm.TileID]bool {
	zone := make(map[realm.TileID]bool)
	for _, c := range w.CitiesOf(p) {
		center := w.Tile(c.Center)
		if center == nil {
			continue
		}
		for _, t := range w.TilesWithin(center.Coord, threatRadius) {
			zone[t.ID] = true
		}
	}
	return zone
}

// ThreatenedCities returns p's cities with more than threatThreshold
// non-friendly troops within threatRadius, in city id order.
func ThreatenedCities(w *realm.World, p realm.PlayerID) []realm.CityID {
	var out []realm.CityID
	for _, c := range w.CitiesOf(p) {
		if enemyMass(w, p, c) > threatThreshold {
			out = append(out, c.ID)
		}
	}
	return out
}

func enemyMass(w *realm.World, p realm.PlayerID, c *realm.City) int {
	center := w.Tile(c.Center)
	if center == nil {
		return 0
	}
	mass := 0
	for _, t := range w.TilesWithin(center.Coord, threatRadius) {
		for _, u := range w.UnitsOn(t.ID) {
			if u.Owner != p && u.Owner != 0 && u.Type.Fights() && !w.Friendly(p, u.Owner) {
				mass += u.Count
			}
		}
	}
	return mass
}
