package realm

import (
	"fmt"
	"math"
)

// GroupSize is the fixed number of units per type that moves as one group.
const GroupSize = 100

// MoveOutcome summarises a processed move.
type MoveOutcome struct {
	Path        []TileID      `json:"path"`
	Reached     TileID        `json:"reached"`
	Moved       Troops        `json:"moved"`
	Arrived     bool          `json:"arrived"`
	Battlefield BattlefieldID `json:"battlefield,omitempty"`
	Captured    []TileID      `json:"captured,omitempty"`
	AutoMoves   []AutoMoveID  `json:"autoMoves,omitempty"`
	Blocked     bool          `json:"blocked,omitempty"`
}

// stepResult is what a single hex step did.
type stepResult int

const (
	stepMoved stepResult = iota
	stepBlocked
	stepBattle
)

// moveGroup picks the per-type group leaving a tile: GroupSize units of
// each requested type, or the whole stock of a type under GroupSize. An
// empty request moves every type on the tile.
func moveGroup(w *World, p PlayerID, tile TileID, requested Troops) Troops {
	stock := w.TroopsOf(p, tile)
	group := make(Troops)
	if len(requested) == 0 {
		for ut, n := range stock {
			group[ut] = min(GroupSize, n)
		}
		return group.clone()
	}
	for ut, n := range requested {
		if n <= 0 || !ut.Fights() {
			continue
		}
		group[ut] = min(GroupSize, stock[ut])
	}
	return group.clone()
}

// movementBudget is the smallest movement allowance of the group's types.
func movementBudget(group Troops) float64 {
	budget := math.MaxFloat64
	for _, ut := range group.Types() {
		budget = min(budget, float64(ut.MovementPoints()))
	}
	if budget == math.MaxFloat64 {
		return 0
	}
	return budget
}

// move handles move and attack actions: find a path, step along it for one
// turn's budget and leave standing orders for the remainder.
func (run *phaseRun) move(p PlayerID, from, to TileID, requested Troops, attack bool, strategy string) (MoveOutcome, error) {
	w := run.w
	src, dst := w.Tile(from), w.Tile(to)
	if src == nil || dst == nil {
		return MoveOutcome{}, ErrUnknownTile
	}
	group := moveGroup(w, p, from, requested)
	if group.Total() == 0 {
		return MoveOutcome{}, ErrNoTroops
	}
	path := findPath(w, p, from, to, group.Types(), attack)
	if path == nil {
		return MoveOutcome{}, fmt.Errorf("%w: %d -> %d", ErrNoPath, from, to)
	}

	out := MoveOutcome{Path: path, Reached: from, Moved: group}
	points := movementBudget(group)
	cursor := 0
	for cursor < len(path)-1 {
		next := w.Tile(path[cursor+1])
		cost := next.Terrain.MoveCost()
		if points < cost && cursor > 0 {
			break
		}
		final := cursor+1 == len(path)-1
		prevOwner := next.Owner
		res, bf := run.step(p, path[cursor], next, group, final && attack, strategy)
		switch res {
		case stepBlocked:
			out.Blocked = true
		case stepBattle:
			out.Battlefield = bf
			out.Reached = next.ID
			cursor++
		case stepMoved:
			out.Reached = next.ID
			if prevOwner != p && next.Owner == p {
				out.Captured = append(out.Captured, next.ID)
			}
			cursor++
			points -= cost
			continue
		}
		break
	}
	out.Arrived = out.Reached == to

	if !out.Arrived && !out.Blocked && out.Battlefield == 0 && cursor < len(path)-1 {
		for _, ut := range group.Types() {
			am := run.newAutoMove(p, ut, group[ut], path[cursor:])
			out.AutoMoves = append(out.AutoMoves, am.ID)
		}
	}
	return out, nil
}

// step moves a group one hex, re-checking passability. Meeting an enemy
// at war puts the group on the tile and opens or joins a Battlefield.
func (run *phaseRun) step(p PlayerID, from TileID, next *Tile, group Troops, attackTarget bool, strategy string) (stepResult, BattlefieldID) {
	w := run.w
	if !canStand(group.Types(), next.Terrain) {
		return stepBlocked, 0
	}
	if !territoryOpen(w, p, next) && !attackTarget {
		return stepBlocked, 0
	}

	var enemies []PlayerID
	for _, o := range w.OccupantsOf(next.ID) {
		if w.Friendly(p, o) {
			continue
		}
		if !w.AtWar(p, o) && !attackTarget {
			return stepBlocked, 0
		}
		enemies = append(enemies, o)
	}
	if attackTarget {
		if next.Owner != 0 && !w.Friendly(p, next.Owner) {
			run.declareWar(p, next.Owner)
		}
		for _, o := range enemies {
			run.declareWar(p, o)
		}
	}

	w.transferUnits(p, from, next.ID, group)
	if len(enemies) > 0 {
		bf := run.joinBattlefield(next.ID, p, enemies, strategy)
		return stepBattle, bf.ID
	}
	run.occupy(p, next)
	return stepMoved, 0
}

// occupy claims an empty tile the mover now stands on. Unowned land is
// claimed, enemy land at war is captured and a city center flips its
// whole cluster. Other cluster tiles never flip on their own.
func (run *phaseRun) occupy(p PlayerID, t *Tile) {
	w := run.w
	if t.Owner == p {
		return
	}
	if t.Owner != 0 && !w.AtWar(p, t.Owner) {
		return
	}
	prev := t.Owner
	if t.City != 0 {
		c := w.City(t.City)
		if c == nil {
			return
		}
		if c.Center != t.ID {
			return
		}
		w.transferCity(c, p, true)
		text := fmt.Sprintf("%s captured %s", run.playerName(p), c.Name)
		if prev == 0 {
			text = fmt.Sprintf("%s took the unclaimed city of %s", run.playerName(p), c.Name)
		}
		run.globalNews(NewsCapture, text, map[string]any{"city": c.ID, "from": prev, "to": p})
		return
	}
	t.Owner = p
	if prev != 0 {
		run.privateNews(NewsCapture, []PlayerID{p, prev},
			fmt.Sprintf("%s seized a tile from %s", run.playerName(p), run.playerName(prev)),
			map[string]any{"tile": t.ID})
	}
}

// attack translates an attack into a move in attack mode. Friendly targets
// are refused; a hostile or neutral owner is at war once a route exists.
func (run *phaseRun) attack(p PlayerID, a AttackAction) error {
	w := run.w
	target := w.Tile(a.To)
	if target == nil || w.Tile(a.From) == nil {
		return ErrUnknownTile
	}
	var foes []PlayerID
	for _, o := range w.OccupantsOf(target.ID) {
		if o == p {
			continue
		}
		if w.Friendly(p, o) {
			return fmt.Errorf("%w: %s", ErrFriendlyTarget, run.playerName(o))
		}
		foes = append(foes, o)
	}
	if target.Owner != 0 && target.Owner != p {
		if w.Friendly(p, target.Owner) {
			return fmt.Errorf("%w: %s", ErrFriendlyTarget, run.playerName(target.Owner))
		}
		foes = append(foes, target.Owner)
	}
	if len(foes) == 0 && target.Owner == p {
		return fmt.Errorf("%w: own tile", ErrInvalidTarget)
	}

	group := moveGroup(w, p, a.From, a.Units)
	if group.Total() == 0 {
		return ErrNoTroops
	}
	var path []TileID
	w.assumingWar(p, foes, func() {
		path = findPath(w, p, a.From, a.To, group.Types(), true)
	})
	if path == nil {
		return fmt.Errorf("%w: %d -> %d", ErrNoPath, a.From, a.To)
	}

	for _, o := range foes {
		run.declareWar(p, o)
	}
	out, err := run.move(p, a.From, a.To, a.Units, true, a.Strategy)
	if err != nil {
		return err
	}
	run.privateNews(NewsMovement, []PlayerID{p},
		fmt.Sprintf("attack toward tile %d: %d troops advanced", a.To, out.Moved.Total()),
		map[string]any{"arrived": out.Arrived, "battlefield": out.Battlefield})
	return nil
}

// requestRetreat flags the player's withdrawal from the battlefield on a tile.
func (run *phaseRun) requestRetreat(p PlayerID, tile TileID) error {
	bf := run.w.openBattlefieldOn(tile)
	if bf == nil {
		return ErrNotInBattle
	}
	for i := range bf.Participants {
		pt := &bf.Participants[i]
		if pt.Player == p && pt.LeftTurn == 0 {
			pt.Retreat = true
			return nil
		}
	}
	return ErrNotInBattle
}
