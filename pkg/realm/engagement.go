package realm

import "fmt"

// EngagementState is open until the owner decides or it expires.
type EngagementState string

const (
	EngagementOpen     EngagementState = "open"
	EngagementResolved EngagementState = "resolved"
)

// EngagementOutcome records how an engagement closed.
type EngagementOutcome string

const (
	OutcomeEscalated EngagementOutcome = "escalated"
	OutcomeRetreated EngagementOutcome = "retreated"
	OutcomeCanceled  EngagementOutcome = "canceled"
	OutcomeCleared   EngagementOutcome = "cleared"
	OutcomeExpired   EngagementOutcome = "expired"
)

// Engagement is a two-party stand-off: a standing order blocked by an
// enemy stack. It becomes a Battlefield only if the owner attacks.
type Engagement struct {
	ID           EngagementID      `json:"id"`
	Tile         TileID            `json:"tile"`
	Attacker     PlayerID          `json:"attacker"`
	Defender     PlayerID          `json:"defender"`
	AutoMove     AutoMoveID        `json:"autoMove"`
	State        EngagementState   `json:"state"`
	CreatedTurn  int               `json:"createdTurn"`
	ResolvedTurn int               `json:"resolvedTurn,omitempty"`
	Outcome      EngagementOutcome `json:"outcome,omitempty"`
}

// Engagement returns the engagement with the given id, or nil.
func (w *World) Engagement(id EngagementID) *Engagement {
	if id == 0 {
		return nil
	}
	for _, eg := range w.Engagements {
		if eg.ID == id {
			return eg
		}
	}
	return nil
}

func (run *phaseRun) openEngagement(tile TileID, attacker, defender PlayerID, order AutoMoveID) *Engagement {
	w := run.w
	for _, eg := range w.Engagements {
		if eg.State == EngagementOpen && eg.AutoMove == order {
			return eg
		}
	}
	eg := &Engagement{
		ID:          EngagementID(w.NextID()),
		Tile:        tile,
		Attacker:    attacker,
		Defender:    defender,
		AutoMove:    order,
		State:       EngagementOpen,
		CreatedTurn: w.Room.Turn,
	}
	w.Engagements = append(w.Engagements, eg)
	run.privateNews(NewsMovement, []PlayerID{attacker, defender},
		fmt.Sprintf("%s's column is blocked by %s", run.playerName(attacker), run.playerName(defender)),
		map[string]any{"engagement": eg.ID, "tile": tile})
	return eg
}

func (run *phaseRun) closeEngagement(eg *Engagement, outcome EngagementOutcome) {
	eg.State = EngagementResolved
	eg.Outcome = outcome
	eg.ResolvedTurn = run.w.Room.Turn
}

// expireEngagements closes engagements nobody answered in time and
// cancels their orders.
func (run *phaseRun) expireEngagements() {
	w := run.w
	limit := w.Room.Config.EngagementExpiryTurns
	if limit <= 0 {
		limit = DefaultRoomConfig().EngagementExpiryTurns
	}
	live := w.Engagements[:0]
	for _, eg := range w.Engagements {
		if eg.State == EngagementOpen && w.Room.Turn-eg.CreatedTurn >= limit {
			run.closeEngagement(eg, OutcomeExpired)
			if am := w.AutoMove(eg.AutoMove); am != nil && am.Status == AutoBlocked {
				am.Status = AutoCanceled
			}
			run.privateNews(NewsMovement, []PlayerID{eg.Attacker},
				"a blocked column gave up and stood down", map[string]any{"engagement": eg.ID})
		}
		if eg.State == EngagementResolved && eg.ResolvedTurn < w.Room.Turn-limit {
			continue
		}
		live = append(live, eg)
	}
	w.Engagements = live
}
