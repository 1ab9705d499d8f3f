package realm

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ActionType tags a submitted action.
type ActionType string

const (
	ActionAttack    ActionType = "attack"
	ActionMove      ActionType = "move"
	ActionAutoMove  ActionType = "automove"
	ActionBuild     ActionType = "build"
	ActionRecruit   ActionType = "recruit"
	ActionTax       ActionType = "tax"
	ActionTrade     ActionType = "trade"
	ActionDiplomacy ActionType = "diplomacy"
	ActionEspionage ActionType = "espionage"
	ActionCivilWar  ActionType = "civil_war"
)

// actionOrder is the fixed application order inside the Actions phase.
var actionOrder = map[ActionType]int{
	ActionAttack:    0,
	ActionMove:      1,
	ActionAutoMove:  1,
	ActionBuild:     2,
	ActionRecruit:   3,
	ActionTax:       4,
	ActionTrade:     5,
	ActionDiplomacy: 5,
	ActionEspionage: 6,
	ActionCivilWar:  7,
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	_, ok := actionOrder[t]
	return ok
}

// Action is the closed set of action payloads.
type Action interface {
	Type() ActionType
	isAction()
}

// MoveAction moves a group toward a tile. With Retreat set it instead
// requests withdrawal from the battlefield on From.
type MoveAction struct {
	From    TileID `json:"fromTile"`
	To      TileID `json:"toTile"`
	Units   Troops `json:"units,omitempty"`
	Retreat bool   `json:"retreat,omitempty"`
}

// AttackAction is a move in attack mode with a strategy for the judge.
type AttackAction struct {
	From     TileID `json:"fromTile"`
	To       TileID `json:"toTile"`
	Units    Troops `json:"units,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// AutoMoveDecision answers a blocked standing order.
type AutoMoveDecision string

const (
	DecideAttack  AutoMoveDecision = "attack"
	DecideRetreat AutoMoveDecision = "retreat"
	DecideCancel  AutoMoveDecision = "cancel"
)

// AutoMoveAction is the owner's decision on a blocked order.
type AutoMoveAction struct {
	Order    AutoMoveID       `json:"order"`
	Decision AutoMoveDecision `json:"decision"`
	Strategy string           `json:"strategy,omitempty"`
}

// BuildAction queues one building level.
type BuildAction struct {
	City     CityID       `json:"city"`
	Building BuildingKind `json:"building"`
}

// RecruitAction trains units (or spies) in a city.
type RecruitAction struct {
	City  CityID   `json:"city"`
	Unit  UnitType `json:"unit"`
	Count int      `json:"count"`
}

// TaxAction sets the tax rate of one city, or all cities when City is 0.
type TaxAction struct {
	City CityID  `json:"city,omitempty"`
	Rate float64 `json:"rate"`
}

// TradeOp is the trade negotiation verb.
type TradeOp string

const (
	TradePropose TradeOp = "propose"
	TradeAccept  TradeOp = "accept"
	TradeReject  TradeOp = "reject"
	TradeCounter TradeOp = "counter"
)

// TradeAction negotiates a trade.
type TradeAction struct {
	Op        TradeOp  `json:"op"`
	Trade     TradeID  `json:"trade,omitempty"`
	Responder PlayerID `json:"responder,omitempty"`
	Offer     Bundle   `json:"offer"`
	Request   Bundle   `json:"request"`
}

// DiplomacyOp is the stance negotiation verb.
type DiplomacyOp string

const (
	DiplomacyPropose DiplomacyOp = "propose"
	DiplomacyAccept  DiplomacyOp = "accept"
	DiplomacyReject  DiplomacyOp = "reject"
)

// DiplomacyAction proposes or answers a stance change.
type DiplomacyAction struct {
	Op     DiplomacyOp `json:"op"`
	Target PlayerID    `json:"target"`
	Status Stance      `json:"status,omitempty"`
}

// EspionageAction deploys a spy on a mission.
type EspionageAction struct {
	Spy     SpyID   `json:"spy"`
	Mission Mission `json:"mission"`
	Target  TileID  `json:"target"`
}

// CivilWarAction incites unrest in a foreign city where the player has a spy.
type CivilWarAction struct {
	City CityID `json:"city"`
}

func (MoveAction) Type() ActionType      { return ActionMove }
func (AttackAction) Type() ActionType    { return ActionAttack }
func (AutoMoveAction) Type() ActionType  { return ActionAutoMove }
func (BuildAction) Type() ActionType     { return ActionBuild }
func (RecruitAction) Type() ActionType   { return ActionRecruit }
func (TaxAction) Type() ActionType       { return ActionTax }
func (TradeAction) Type() ActionType     { return ActionTrade }
func (DiplomacyAction) Type() ActionType { return ActionDiplomacy }
func (EspionageAction) Type() ActionType { return ActionEspionage }
func (CivilWarAction) Type() ActionType  { return ActionCivilWar }

func (MoveAction) isAction()      {}
func (AttackAction) isAction()    {}
func (AutoMoveAction) isAction()  {}
func (BuildAction) isAction()     {}
func (RecruitAction) isAction()   {}
func (TaxAction) isAction()       {}
func (TradeAction) isAction()     {}
func (DiplomacyAction) isAction() {}
func (EspionageAction) isAction() {}
func (CivilWarAction) isAction()  {}

// DecodeAction parses a payload for the given type.
func DecodeAction(t ActionType, data json.RawMessage) (Action, error) {
	var (
		a   Action
		err error
	)
	switch t {
	case ActionMove:
		var v MoveAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionAttack:
		var v AttackAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionAutoMove:
		var v AutoMoveAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionBuild:
		var v BuildAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionRecruit:
		var v RecruitAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionTax:
		var v TaxAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionTrade:
		var v TradeAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionDiplomacy:
		var v DiplomacyAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionEspionage:
		var v EspionageAction
		err = json.Unmarshal(data, &v)
		a = v
	case ActionCivilWar:
		var v CivilWarAction
		err = json.Unmarshal(data, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidAction, t, err)
	}
	return a, nil
}

// Submission is the envelope of a player or AI action.
type Submission struct {
	ID          string          `json:"id"`
	RoomID      string          `json:"gameId"`
	PlayerID    PlayerID        `json:"playerId"`
	Turn        int             `json:"turn"`
	Type        ActionType      `json:"actionType"`
	Data        json.RawMessage `json:"data"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Resolved    bool            `json:"resolved"`
}

// NewSubmission encodes an action into an envelope.
func NewSubmission(id, roomID string, player PlayerID, turn int, a Action) (Submission, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return Submission{}, fmt.Errorf("encode %s: %w", a.Type(), err)
	}
	return Submission{
		ID:          id,
		RoomID:      roomID,
		PlayerID:    player,
		Turn:        turn,
		Type:        a.Type(),
		Data:        data,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// SubmissionOutcome reports how one submission was applied.
type SubmissionOutcome struct {
	ID     string     `json:"id"`
	Player PlayerID   `json:"playerId"`
	Type   ActionType `json:"actionType"`
	OK     bool       `json:"ok"`
	Error  string     `json:"error,omitempty"`
}

func orderSubmissions(subs []Submission) []Submission {
	out := make([]Submission, 0, len(subs))
	for _, s := range subs {
		if !s.Resolved {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := actionOrder[out[i].Type], actionOrder[out[j].Type]
		if oi != oj {
			return oi < oj
		}
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// applySubmission runs one action in isolation; a failure or panic is
// logged and reported without stopping the phase.
func (run *phaseRun) applySubmission(s Submission) (out SubmissionOutcome) {
	out = SubmissionOutcome{ID: s.ID, Player: s.PlayerID, Type: s.Type}
	defer func() {
		if r := recover(); r != nil {
			run.log.Error().Str("actionId", s.ID).Interface("panic", r).Msg("Action panicked")
			out.OK = false
			out.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	err := run.applyEncoded(s)
	if err != nil {
		run.log.Info().Err(err).Str("actionId", s.ID).Str("actionType", string(s.Type)).
			Int64("playerId", int64(s.PlayerID)).Msg("Action rejected")
		out.Error = err.Error()
		run.privateNews(NewsActionFail, []PlayerID{s.PlayerID},
			fmt.Sprintf("%s order failed: %v", s.Type, err), map[string]any{"actionId": s.ID})
		return out
	}
	out.OK = true
	return out
}

func (run *phaseRun) applyEncoded(s Submission) error {
	p := run.w.Player(s.PlayerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.Eliminated {
		return fmt.Errorf("%w: player eliminated", ErrInvalidAction)
	}
	a, err := DecodeAction(s.Type, s.Data)
	if err != nil {
		return err
	}
	return run.apply(s.PlayerID, a)
}

// apply dispatches a decoded action.
func (run *phaseRun) apply(p PlayerID, a Action) error {
	switch v := a.(type) {
	case AttackAction:
		return run.attack(p, v)
	case MoveAction:
		if v.Retreat {
			return run.requestRetreat(p, v.From)
		}
		_, err := run.move(p, v.From, v.To, v.Units, false, "")
		return err
	case AutoMoveAction:
		return run.decideAutoMove(p, v)
	case BuildAction:
		return run.build(p, v)
	case RecruitAction:
		return run.recruit(p, v)
	case TaxAction:
		return run.setTax(p, v)
	case TradeAction:
		return run.trade(p, v)
	case DiplomacyAction:
		return run.diplomacy(p, v)
	case EspionageAction:
		return DeploySpy(run.w, p, v.Spy, v.Mission, v.Target)
	case CivilWarAction:
		return run.inciteCivilWar(p, v)
	default:
		return fmt.Errorf("%w: unhandled %T", ErrInvalidAction, a)
	}
}

func (run *phaseRun) diplomacy(p PlayerID, a DiplomacyAction) error {
	switch a.Op {
	case DiplomacyPropose:
		return run.w.ProposeStance(p, a.Target, a.Status)
	case DiplomacyAccept:
		return run.w.RespondStance(p, a.Target, true)
	case DiplomacyReject:
		return run.w.RespondStance(p, a.Target, false)
	}
	return fmt.Errorf("%w: diplomacy op %q", ErrInvalidAction, a.Op)
}

func (run *phaseRun) trade(p PlayerID, a TradeAction) error {
	w := run.w
	switch a.Op {
	case TradePropose:
		_, err := ProposeTrade(w, p, a.Responder, a.Offer, a.Request)
		return err
	case TradeAccept:
		return RespondTrade(w, p, a.Trade, true)
	case TradeReject:
		return RespondTrade(w, p, a.Trade, false)
	case TradeCounter:
		_, err := CounterTrade(w, p, a.Trade, a.Offer, a.Request)
		return err
	}
	return fmt.Errorf("%w: trade op %q", ErrInvalidAction, a.Op)
}
