package realm

// Vision radii.
const (
	territoryVision = 1
	unitVision      = 2
	cityVision      = 2
	spyVision       = 1
)

// VisionOf returns the tiles p sees by its own means.
func (w *World) VisionOf(p PlayerID) map[TileID]bool {
	seen := make(map[TileID]bool)
	mark := func(t *Tile, r int) {
		for _, n := range w.TilesWithin(t.Coord, r) {
			seen[n.ID] = true
		}
	}
	for _, t := range w.Tiles {
		if t.Owner == p {
			mark(t, territoryVision)
		}
	}
	for _, u := range w.Units {
		if u.Owner == p && u.Count > 0 {
			if t := w.Tile(u.Tile); t != nil {
				mark(t, unitVision)
			}
		}
	}
	for _, c := range w.CitiesOf(p) {
		if t := w.Tile(c.Center); t != nil {
			mark(t, cityVision+c.BuildingLevel(Watchtower))
		}
	}
	for _, s := range w.SpiesOf(p) {
		if t := w.Tile(s.Tile); t != nil {
			mark(t, spyVision)
		}
		if w.Room.Turn-s.IntelTurn <= 1 {
			for _, id := range s.Intel {
				seen[id] = true
			}
		}
	}
	return seen
}

// recomputeFog rebuilds current sight including shared vision. Discovered
// tiles stay discovered.
func (run *phaseRun) recomputeFog() {
	w := run.w
	own := make(map[PlayerID]map[TileID]bool)
	for _, p := range w.ActivePlayers() {
		own[p.ID] = w.VisionOf(p.ID)
	}
	for _, t := range w.Tiles {
		t.Sight = nil
	}
	for p, seen := range own {
		for id := range seen {
			w.Tile(id).reveal(p)
		}
	}
	for _, r := range w.Relations {
		if !r.SharedVision || !w.Friendly(r.A, r.B) {
			continue
		}
		for id := range own[r.B] {
			w.Tile(id).reveal(r.A)
		}
		for id := range own[r.A] {
			w.Tile(id).reveal(r.B)
		}
	}
}
