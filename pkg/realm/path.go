package realm

import "container/heap"

const (
	// heuristicWeight keeps the estimate admissible: 0.7 x distance never
	// exceeds the true cost when every step costs at least MinMoveCost.
	heuristicWeight = 0.7
	// MaxPathNodes bounds the number of expansions of one search.
	MaxPathNodes = 20000
)

type pathNode struct {
	tile   *Tile
	g, h   float64
	parent *pathNode
	index  int
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].tile.ID < ol[j].tile.ID
}
func (ol openList) Swap(i, j int) {
	ol[i], ol[j] = ol[j], ol[i]
	ol[i].index = i
	ol[j].index = j
}
func (ol *openList) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*ol)
	*ol = append(*ol, n)
}
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

// FindPath returns the cheapest passable tile sequence from -> to (both
// included) for the mover's units, or nil if none exists.
func FindPath(w *World, mover PlayerID, from, to TileID, types []UnitType) []TileID {
	return findPath(w, mover, from, to, types, false)
}

// FindAttackPath is FindPath that also admits a hostile or neutral owner
// on the final tile.
func FindAttackPath(w *World, mover PlayerID, from, to TileID, types []UnitType) []TileID {
	return findPath(w, mover, from, to, types, true)
}

func findPath(w *World, mover PlayerID, from, to TileID, types []UnitType, attack bool) []TileID {
	start, goal := w.Tile(from), w.Tile(to)
	if start == nil || goal == nil {
		return nil
	}
	for _, ut := range types {
		if !ut.CanEnter(goal.Terrain) {
			return nil
		}
	}
	if from == to {
		return []TileID{from}
	}

	heuristic := func(t *Tile) float64 {
		return heuristicWeight * float64(HexDistance(t.Coord, goal.Coord))
	}

	ol := &openList{{tile: start, h: heuristic(start)}}
	heap.Init(ol)
	best := map[TileID]float64{from: 0}
	closed := make(map[TileID]bool)

	for expanded := 0; ol.Len() > 0 && expanded < MaxPathNodes; expanded++ {
		cur := heap.Pop(ol).(*pathNode)
		if cur.tile.ID == to {
			return buildPath(cur)
		}
		if closed[cur.tile.ID] {
			continue
		}
		closed[cur.tile.ID] = true

		for _, next := range w.NeighborTiles(cur.tile) {
			if closed[next.ID] {
				continue
			}
			final := next.ID == to
			if !stepPassable(w, mover, next, types, final, attack) {
				continue
			}
			g := cur.g + next.Terrain.MoveCost()
			if prev, ok := best[next.ID]; ok && prev <= g {
				continue
			}
			best[next.ID] = g
			heap.Push(ol, &pathNode{tile: next, g: g, h: heuristic(next), parent: cur})
		}
	}
	return nil
}

func buildPath(end *pathNode) []TileID {
	var ids []TileID
	for n := end; n != nil; n = n.parent {
		ids = append(ids, n.tile.ID)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// PathCost sums the entry cost of every tile after the first.
func PathCost(w *World, path []TileID) float64 {
	cost := 0.0
	for _, id := range path[min(1, len(path)):] {
		if t := w.Tile(id); t != nil {
			cost += t.Terrain.MoveCost()
		}
	}
	return cost
}

// territoryOpen reports whether mover may enter a tile owned by someone
// else: unowned, own, friendly or same-nation land, or land of an enemy at war.
func territoryOpen(w *World, mover PlayerID, t *Tile) bool {
	if t.Owner == 0 || w.Friendly(mover, t.Owner) {
		return true
	}
	return w.AtWar(mover, t.Owner)
}

// blockedByOccupants reports whether a non-friendly stack holds the tile.
func blockedByOccupants(w *World, mover PlayerID, t *Tile) bool {
	for _, o := range w.OccupantsOf(t.ID) {
		if !w.Friendly(mover, o) {
			return true
		}
	}
	return false
}

func stepPassable(w *World, mover PlayerID, t *Tile, types []UnitType, final, attack bool) bool {
	for _, ut := range types {
		if !ut.CanEnter(t.Terrain) {
			return false
		}
	}
	if !territoryOpen(w, mover, t) {
		if !(final && attack) {
			return false
		}
	}
	if !final && blockedByOccupants(w, mover, t) {
		return false
	}
	return true
}

// NearestSafeTile finds the closest tile p can fall back to from a tile:
// reachable for the given types, not owned by a non-friendly player and
// free of non-friendly stacks. Returns 0 when there is none within range.
func NearestSafeTile(w *World, p PlayerID, from TileID, types []UnitType) TileID {
	start := w.Tile(from)
	if start == nil {
		return 0
	}
	const maxRadius = 8
	seen := map[TileID]bool{from: true}
	frontier := []*Tile{start}
	for depth := 0; depth < maxRadius && len(frontier) > 0; depth++ {
		var next []*Tile
		for _, cur := range frontier {
			for _, n := range w.NeighborTiles(cur) {
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				if !canStand(types, n.Terrain) {
					continue
				}
				if safeFor(w, p, n) {
					return n.ID
				}
				if n.Owner == 0 || w.Friendly(p, n.Owner) || w.AtWar(p, n.Owner) {
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return 0
}

func canStand(types []UnitType, t Terrain) bool {
	for _, ut := range types {
		if !ut.CanEnter(t) {
			return false
		}
	}
	return true
}

func safeFor(w *World, p PlayerID, t *Tile) bool {
	if t.Owner != 0 && !w.Friendly(p, t.Owner) {
		return false
	}
	return !blockedByOccupants(w, p, t)
}
