package realm

import "fmt"

// Stance is the diplomatic status between two players, ordered from
// worst to best.
type Stance string

const (
	War      Stance = "war"
	Hostile  Stance = "hostile"
	Neutral  Stance = "neutral"
	Friendly Stance = "friendly"
	Alliance Stance = "alliance"
)

func (s Stance) rank() int {
	switch s {
	case War:
		return 0
	case Hostile:
		return 1
	case Neutral:
		return 2
	case Friendly:
		return 3
	case Alliance:
		return 4
	}
	return -1
}

// Valid reports whether s is a known stance.
func (s Stance) Valid() bool { return s.rank() >= 0 }

// Worse reports whether s is a downgrade from o.
func (s Stance) Worse(o Stance) bool { return s.rank() < o.rank() }

const defaultFavorability = 50

// Proposal is a staged stance change awaiting the Resolution phase.
type Proposal struct {
	Status    Stance   `json:"status"`
	Requester PlayerID `json:"requester"`
	Turn      int      `json:"turn"`
	Accepted  bool     `json:"accepted"`
}

// Relation is the unordered diplomatic pair (A < B).
type Relation struct {
	A            PlayerID  `json:"a"`
	B            PlayerID  `json:"b"`
	Status       Stance    `json:"status"`
	Favorability int       `json:"favorability"`
	SharedVision bool      `json:"sharedVision"`
	Pending      *Proposal `json:"pending,omitempty"`
}

// Other returns the counterpart of p in the pair.
func (r *Relation) Other(p PlayerID) PlayerID {
	if r.A == p {
		return r.B
	}
	return r.A
}

type pairKey struct{ a, b PlayerID }

func makePair(a, b PlayerID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Relation returns the stored relation for a pair, or nil if they have
// never interacted.
func (w *World) Relation(a, b PlayerID) *Relation {
	return w.relations[makePair(a, b)]
}

// relation returns the pair's relation, creating a neutral one on demand.
func (w *World) relation(a, b PlayerID) *Relation {
	k := makePair(a, b)
	if r := w.relations[k]; r != nil {
		return r
	}
	r := &Relation{A: k.a, B: k.b, Status: Neutral, Favorability: defaultFavorability}
	w.Relations = append(w.Relations, r)
	w.relations[k] = r
	return r
}

// SetRelation forces a pair's status without going through proposals.
// Used when seeding a room.
func (w *World) SetRelation(a, b PlayerID, s Stance, favorability int) *Relation {
	r := w.relation(a, b)
	r.Status = s
	r.Favorability = clampInt(favorability, 0, 100)
	r.SharedVision = s == Alliance
	return r
}

// Stance returns the pair's status; unrelated players are neutral.
func (w *World) Stance(a, b PlayerID) Stance {
	if r := w.Relation(a, b); r != nil {
		return r.Status
	}
	return Neutral
}

// SameNation reports whether two distinct players share a nation.
func (w *World) SameNation(a, b PlayerID) bool {
	pa, pb := w.Player(a), w.Player(b)
	return pa != nil && pb != nil && pa.Nation != "" && pa.Nation == pb.Nation
}

// Friendly reports whether the pair may share tiles and teams.
func (w *World) Friendly(a, b PlayerID) bool {
	if a == b || w.SameNation(a, b) {
		return true
	}
	s := w.Stance(a, b)
	return s == Friendly || s == Alliance
}

// AtWar reports whether the pair is at war.
func (w *World) AtWar(a, b PlayerID) bool {
	if a == b || w.SameNation(a, b) {
		return false
	}
	if w.assumedWar[makePair(a, b)] {
		return true
	}
	return w.Stance(a, b) == War
}

// assumingWar runs fn as if p were already at war with every player in
// others. Stored relations are left untouched.
func (w *World) assumingWar(p PlayerID, others []PlayerID, fn func()) {
	w.assumedWar = make(map[pairKey]bool, len(others))
	for _, o := range others {
		w.assumedWar[makePair(p, o)] = true
	}
	defer func() { w.assumedWar = nil }()
	fn()
}

// ProposeStance stages a stance change from requester toward target.
// The status itself changes only during Resolution.
func (w *World) ProposeStance(requester, target PlayerID, s Stance) error {
	if requester == target {
		return fmt.Errorf("%w: cannot propose to self", ErrInvalidTarget)
	}
	if w.Player(target) == nil || w.Player(requester) == nil {
		return ErrUnknownPlayer
	}
	if !s.Valid() {
		return fmt.Errorf("%w: stance %q", ErrInvalidAction, s)
	}
	r := w.relation(requester, target)
	if r.Status == s {
		return fmt.Errorf("%w: already %s", ErrInvalidAction, s)
	}
	r.Pending = &Proposal{Status: s, Requester: requester, Turn: w.Room.Turn}
	return nil
}

// RespondStance records the counterpart's answer to a pending improvement.
func (w *World) RespondStance(responder, requester PlayerID, accept bool) error {
	r := w.Relation(responder, requester)
	if r == nil || r.Pending == nil || r.Pending.Requester != requester {
		return ErrNoProposal
	}
	if accept {
		r.Pending.Accepted = true
		return nil
	}
	r.Pending = nil
	return nil
}

// applyDiplomacy resolves every staged proposal. Downgrades apply
// unilaterally, upgrades need the counterpart's acceptance, and every
// pending proposal is cleared.
func (run *phaseRun) applyDiplomacy() {
	for _, r := range run.w.Relations {
		p := r.Pending
		if p == nil {
			continue
		}
		r.Pending = nil
		if p.Status.Worse(r.Status) || p.Accepted {
			run.setStance(r, p.Status, p.Requester)
			continue
		}
		run.privateNews(NewsDiplomacy, []PlayerID{r.A, r.B},
			fmt.Sprintf("%s's proposal of %s went unanswered", run.playerName(p.Requester), p.Status), nil)
	}
}

// declareWar escalates a pair to war at once; used by attack actions.
func (run *phaseRun) declareWar(attacker, defender PlayerID) {
	r := run.w.relation(attacker, defender)
	if r.Status == War {
		return
	}
	r.Pending = nil
	run.setStance(r, War, attacker)
}

// setStance moves a relation to a new status with its side effects.
func (run *phaseRun) setStance(r *Relation, to Stance, by PlayerID) {
	from := r.Status
	if from == to {
		return
	}
	switch {
	case to == War:
		r.Favorability -= 50
	case to == Alliance:
		r.Favorability += 30
	case from == War && to == Neutral:
		r.Favorability += 20
	}
	r.Favorability = clampInt(r.Favorability, 0, 100)
	r.Status = to

	betrayal := (from == Alliance || from == Friendly) && (to == War || to == Hostile)
	if betrayal {
		r.SharedVision = false
		run.evictFrom(r.A, r.B)
		run.evictFrom(r.B, r.A)
	}
	if to == Alliance {
		r.SharedVision = true
	}

	text := fmt.Sprintf("%s and %s are now %s", run.playerName(r.A), run.playerName(r.B), to)
	if betrayal {
		text = fmt.Sprintf("%s betrayed %s: relations fall to %s", run.playerName(by), run.playerName(r.Other(by)), to)
	}
	run.globalNews(NewsDiplomacy, text, map[string]any{"a": r.A, "b": r.B, "from": from, "to": to})
}

// evictFrom forces p's units standing on owner's territory to retreat.
func (run *phaseRun) evictFrom(p, owner PlayerID) {
	w := run.w
	for _, t := range w.Tiles {
		if t.Owner != owner {
			continue
		}
		troops := w.TroopsOf(p, t.ID)
		if troops.Total() == 0 {
			continue
		}
		dst := NearestSafeTile(w, p, t.ID, troops.Types())
		if dst == 0 {
			continue
		}
		w.transferUnits(p, t.ID, dst, troops)
	}
}
