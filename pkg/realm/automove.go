package realm

import "fmt"

// AutoMoveStatus is the lifecycle of a standing move order.
type AutoMoveStatus string

const (
	AutoActive    AutoMoveStatus = "active"
	AutoBlocked   AutoMoveStatus = "blocked"
	AutoCompleted AutoMoveStatus = "completed"
	AutoCanceled  AutoMoveStatus = "canceled"
)

// BlockReason explains why a standing order stopped.
type BlockReason string

const (
	BlockDiplomacy   BlockReason = "diplomacy"
	BlockEnemy       BlockReason = "enemy_occupancy"
	BlockMissingTile BlockReason = "missing_tile"
	BlockTerrain     BlockReason = "terrain"
)

// AutoMove is a multi-turn move order for a fixed amount of one unit type.
type AutoMove struct {
	ID          AutoMoveID     `json:"id"`
	Owner       PlayerID       `json:"owner"`
	Type        UnitType       `json:"type"`
	Amount      int            `json:"amount"`
	Path        []TileID       `json:"path"`
	Cursor      int            `json:"cursor"`
	Status      AutoMoveStatus `json:"status"`
	BlockReason BlockReason    `json:"blockReason,omitempty"`
	BlockTurn   int            `json:"blockTurn,omitempty"`
	BlockTile   TileID         `json:"blockTile,omitempty"`
	BlockPlayer PlayerID       `json:"blockPlayer,omitempty"`
	Engagement  EngagementID   `json:"engagement,omitempty"`
	CreatedTurn int            `json:"createdTurn"`
}

// Position is the tile the order's units stand on.
func (am *AutoMove) Position() TileID { return am.Path[am.Cursor] }

// Done reports whether the order no longer advances.
func (am *AutoMove) Done() bool {
	return am.Status == AutoCompleted || am.Status == AutoCanceled
}

func (run *phaseRun) newAutoMove(p PlayerID, ut UnitType, amount int, path []TileID) *AutoMove {
	am := &AutoMove{
		ID:          AutoMoveID(run.w.NextID()),
		Owner:       p,
		Type:        ut,
		Amount:      amount,
		Path:        append([]TileID(nil), path...),
		Status:      AutoActive,
		CreatedTurn: run.w.Room.Turn,
	}
	run.w.AutoMoves = append(run.w.AutoMoves, am)
	return am
}

// AutoMove returns the order with the given id, or nil.
func (w *World) AutoMove(id AutoMoveID) *AutoMove {
	for _, am := range w.AutoMoves {
		if am.ID == id {
			return am
		}
	}
	return nil
}

// advanceAutoMoves steps every active order along its path for one
// turn's movement points.
func (run *phaseRun) advanceAutoMoves() {
	w := run.w
	for _, am := range w.AutoMoves {
		if am.Status == AutoBlocked {
			run.recheckBlocked(am)
		}
		if am.Status != AutoActive {
			continue
		}
		run.advance(am)
	}
	run.pruneAutoMoves()
}

func (run *phaseRun) advance(am *AutoMove) {
	w := run.w
	amount := min(am.Amount, w.TroopsOf(am.Owner, am.Position())[am.Type])
	if amount == 0 {
		am.Status = AutoCanceled
		return
	}
	am.Amount = amount
	group := Troops{am.Type: amount}
	points := float64(am.Type.MovementPoints())
	moved := false

	for am.Cursor < len(am.Path)-1 {
		nextID := am.Path[am.Cursor+1]
		next := w.Tile(nextID)
		if next == nil {
			run.block(am, BlockMissingTile, nextID, 0)
			return
		}
		cost := next.Terrain.MoveCost()
		if points < cost && moved {
			return
		}
		if !am.Type.CanEnter(next.Terrain) {
			run.block(am, BlockTerrain, nextID, 0)
			return
		}
		if !territoryOpen(w, am.Owner, next) {
			run.block(am, BlockDiplomacy, nextID, next.Owner)
			return
		}
		if blocker := firstBlocker(w, am.Owner, next); blocker != 0 {
			run.block(am, BlockEnemy, nextID, blocker)
			return
		}
		w.transferUnits(am.Owner, am.Position(), nextID, group)
		run.occupy(am.Owner, next)
		am.Cursor++
		points -= cost
		moved = true
	}
	am.Status = AutoCompleted
	run.privateNews(NewsMovement, []PlayerID{am.Owner},
		fmt.Sprintf("%d %s reached their destination", am.Amount, am.Type), map[string]any{"order": am.ID})
}

func firstBlocker(w *World, p PlayerID, t *Tile) PlayerID {
	for _, o := range w.OccupantsOf(t.ID) {
		if !w.Friendly(p, o) {
			return o
		}
	}
	return 0
}

// block halts an order. Enemy occupancy opens an Engagement and waits for
// the owner's attack, retreat or cancel decision.
func (run *phaseRun) block(am *AutoMove, reason BlockReason, tile TileID, by PlayerID) {
	am.Status = AutoBlocked
	am.BlockReason = reason
	am.BlockTurn = run.w.Room.Turn
	am.BlockTile = tile
	am.BlockPlayer = by
	if reason == BlockEnemy {
		eg := run.openEngagement(tile, am.Owner, by, am.ID)
		am.Engagement = eg.ID
	}
	run.privateNews(NewsMovement, []PlayerID{am.Owner},
		fmt.Sprintf("%d %s halted: %s", am.Amount, am.Type, reason),
		map[string]any{"order": am.ID, "reason": reason, "tile": tile, "engagement": am.Engagement})
}

// recheckBlocked resumes an order whose obstacle is gone.
func (run *phaseRun) recheckBlocked(am *AutoMove) {
	w := run.w
	next := w.Tile(am.BlockTile)
	if next == nil {
		return
	}
	if !territoryOpen(w, am.Owner, next) || firstBlocker(w, am.Owner, next) != 0 {
		return
	}
	am.Status = AutoActive
	am.BlockReason = ""
	if eg := w.Engagement(am.Engagement); eg != nil && eg.State == EngagementOpen {
		run.closeEngagement(eg, OutcomeCleared)
	}
}

// decideAutoMove applies the owner's answer to a blocked order.
func (run *phaseRun) decideAutoMove(p PlayerID, a AutoMoveAction) error {
	w := run.w
	am := w.AutoMove(a.Order)
	if am == nil || am.Owner != p {
		return ErrUnknownOrder
	}
	if am.Status != AutoBlocked {
		return ErrNotBlocked
	}
	eg := w.Engagement(am.Engagement)
	switch a.Decision {
	case DecideAttack:
		if eg == nil || eg.State != EngagementOpen {
			return fmt.Errorf("%w: nothing to attack", ErrInvalidAction)
		}
		if _, err := run.move(p, am.Position(), am.BlockTile, Troops{am.Type: am.Amount}, true, a.Strategy); err != nil {
			return err
		}
		am.Status = AutoCanceled
		run.closeEngagement(eg, OutcomeEscalated)
	case DecideRetreat:
		if am.Cursor > 0 {
			back := am.Path[am.Cursor-1]
			amount := min(am.Amount, w.TroopsOf(p, am.Position())[am.Type])
			if t := w.Tile(back); t != nil && safeFor(w, p, t) {
				w.transferUnits(p, am.Position(), back, Troops{am.Type: amount})
			}
		}
		am.Status = AutoCanceled
		if eg != nil && eg.State == EngagementOpen {
			run.closeEngagement(eg, OutcomeRetreated)
		}
	case DecideCancel:
		am.Status = AutoCanceled
		if eg != nil && eg.State == EngagementOpen {
			run.closeEngagement(eg, OutcomeCanceled)
		}
	default:
		return fmt.Errorf("%w: decision %q", ErrInvalidAction, a.Decision)
	}
	return nil
}

// pruneAutoMoves drops orders finished before this turn.
func (run *phaseRun) pruneAutoMoves() {
	w := run.w
	live := w.AutoMoves[:0]
	for _, am := range w.AutoMoves {
		if am.Done() && am.BlockTurn < w.Room.Turn-1 && am.CreatedTurn < w.Room.Turn-1 {
			continue
		}
		live = append(live, am)
	}
	w.AutoMoves = live
}
