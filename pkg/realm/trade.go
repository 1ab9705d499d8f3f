package realm

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// TradeStatus is the negotiation state of a trade.
type TradeStatus string

const (
	TradeProposed  TradeStatus = "proposed"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeCountered TradeStatus = "countered"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
	TradeExpired   TradeStatus = "expired"
)

// UnitClause hands over units standing on one tile.
type UnitClause struct {
	Tile  TileID   `json:"tile"`
	Type  UnitType `json:"type"`
	Count int      `json:"count"`
}

// Bundle is one side of a trade.
type Bundle struct {
	Gold        int               `json:"gold,omitempty"`
	Food        int               `json:"food,omitempty"`
	Specialty   map[Specialty]int `json:"specialty,omitempty"`
	Units       []UnitClause      `json:"units,omitempty"`
	Cities      []CityID          `json:"cities,omitempty"`
	Spies       []SpyID           `json:"spies,omitempty"`
	PeaceTreaty bool              `json:"peaceTreaty,omitempty"`
	VisionShare bool              `json:"visionShare,omitempty"`
}

// Empty reports whether the bundle carries nothing.
func (b Bundle) Empty() bool {
	return b.Gold == 0 && b.Food == 0 && len(b.Specialty) == 0 && len(b.Units) == 0 &&
		len(b.Cities) == 0 && len(b.Spies) == 0 && !b.PeaceTreaty && !b.VisionShare
}

// Trade is an offer between two players settled atomically at Resolution.
type Trade struct {
	ID            TradeID     `json:"id"`
	Proposer      PlayerID    `json:"proposer"`
	Responder     PlayerID    `json:"responder"`
	Offer         Bundle      `json:"offer"`
	Request       Bundle      `json:"request"`
	Status        TradeStatus `json:"status"`
	ProposedTurn  int         `json:"proposedTurn"`
	RespondedTurn int         `json:"respondedTurn,omitempty"`
	SettledTurn   int         `json:"settledTurn,omitempty"`
	CounterOf     TradeID     `json:"counterOf,omitempty"`
	FailReason    string      `json:"failReason,omitempty"`
	Announced     bool        `json:"announced,omitempty"`
}

// Trade returns the trade with the given id, or nil.
func (w *World) Trade(id TradeID) *Trade {
	for _, t := range w.Trades {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// PendingTradesFor returns proposals awaiting p's answer, oldest first.
func (w *World) PendingTradesFor(p PlayerID) []*Trade {
	var out []*Trade
	for _, t := range w.Trades {
		if t.Status == TradeProposed && t.Responder == p {
			out = append(out, t)
		}
	}
	return out
}

// ProposeTrade records an offer from proposer to responder.
func ProposeTrade(w *World, proposer, responder PlayerID, offer, request Bundle) (*Trade, error) {
	if proposer == responder {
		return nil, fmt.Errorf("%w: trade with self", ErrInvalidTarget)
	}
	if r := w.Player(responder); r == nil || r.Eliminated {
		return nil, ErrUnknownPlayer
	}
	if offer.Empty() && request.Empty() {
		return nil, fmt.Errorf("%w: empty trade", ErrInvalidAction)
	}
	if err := checkBundle(w, proposer, responder, offer); err != nil {
		return nil, err
	}
	if err := checkShape(request); err != nil {
		return nil, err
	}
	t := &Trade{
		ID:           TradeID(w.NextID()),
		Proposer:     proposer,
		Responder:    responder,
		Offer:        offer,
		Request:      request,
		Status:       TradeProposed,
		ProposedTurn: w.Room.Turn,
	}
	w.Trades = append(w.Trades, t)
	return t, nil
}

// RespondTrade accepts or rejects a proposal addressed to responder.
// Acceptance only stages the trade; goods move at Resolution.
func RespondTrade(w *World, responder PlayerID, id TradeID, accept bool) error {
	t := w.Trade(id)
	if t == nil || t.Responder != responder {
		return ErrUnknownTrade
	}
	if t.Status != TradeProposed {
		return fmt.Errorf("%w: %s", ErrTradeState, t.Status)
	}
	t.Status = TradeRejected
	if accept {
		t.Status = TradeAccepted
	}
	t.RespondedTurn = w.Room.Turn
	return nil
}

// CounterTrade replaces a proposal with a new one in the other direction.
func CounterTrade(w *World, responder PlayerID, id TradeID, offer, request Bundle) (*Trade, error) {
	orig := w.Trade(id)
	if orig == nil || orig.Responder != responder {
		return nil, ErrUnknownTrade
	}
	if orig.Status != TradeProposed {
		return nil, fmt.Errorf("%w: %s", ErrTradeState, orig.Status)
	}
	t, err := ProposeTrade(w, responder, orig.Proposer, offer, request)
	if err != nil {
		return nil, err
	}
	orig.Status = TradeCountered
	orig.RespondedTurn = w.Room.Turn
	t.CounterOf = orig.ID
	return t, nil
}

// SettleTradeNow settles a trade between two AI players at once.
func SettleTradeNow(w *World, proposer, responder PlayerID, offer, request Bundle) (*Trade, error) {
	a, b := w.Player(proposer), w.Player(responder)
	if a == nil || b == nil || !a.IsAI || !b.IsAI {
		return nil, fmt.Errorf("%w: immediate settlement is for AI pairs", ErrInvalidAction)
	}
	t, err := ProposeTrade(w, proposer, responder, offer, request)
	if err != nil {
		return nil, err
	}
	t.Status = TradeAccepted
	t.RespondedTurn = w.Room.Turn
	if err := w.settleTrade(t); err != nil {
		return t, err
	}
	return t, nil
}

func checkShape(b Bundle) error {
	if b.Gold < 0 || b.Food < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidAction)
	}
	for s, n := range b.Specialty {
		if n < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidAction, s)
		}
	}
	for _, u := range b.Units {
		if u.Count <= 0 || !u.Type.Fights() {
			return fmt.Errorf("%w: bad unit clause", ErrInvalidAction)
		}
	}
	return nil
}

// checkBundle verifies giver can hand b to receiver right now.
func checkBundle(w *World, giver, receiver PlayerID, b Bundle) error {
	if err := checkShape(b); err != nil {
		return err
	}
	g := w.Player(giver)
	if g == nil {
		return ErrUnknownPlayer
	}
	if g.Gold < b.Gold {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientGold, g.Name, humanize.Comma(int64(g.Gold)), humanize.Comma(int64(b.Gold)))
	}
	if g.Food < b.Food {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFood, g.Name, humanize.Comma(int64(g.Food)), humanize.Comma(int64(b.Food)))
	}
	if len(b.Specialty) > 0 {
		stock := w.SpecialtyStock(giver)
		for s, n := range b.Specialty {
			if stock[s] < n {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, s)
			}
		}
		if len(w.CitiesOf(receiver)) == 0 {
			return fmt.Errorf("%w: receiver has no city to store goods", ErrInvalidTarget)
		}
	}
	need := make(map[TileID]Troops)
	for _, u := range b.Units {
		if need[u.Tile] == nil {
			need[u.Tile] = make(Troops)
		}
		need[u.Tile][u.Type] += u.Count
	}
	for tile, troops := range need {
		have := w.TroopsOf(giver, tile)
		for ut, n := range troops {
			if have[ut] < n {
				return fmt.Errorf("%w: %d %s on tile %d", ErrNoTroops, n, ut, tile)
			}
		}
	}
	for _, id := range b.Cities {
		c := w.City(id)
		if c == nil {
			return ErrUnknownCity
		}
		if c.Owner != giver {
			return fmt.Errorf("%w: %s", ErrNotOwner, c.Name)
		}
		if c.Grade == Capital {
			return fmt.Errorf("%w: capital %s cannot be traded", ErrInvalidTarget, c.Name)
		}
	}
	for _, id := range b.Spies {
		s := w.Spy(id)
		if s == nil || !s.Alive {
			return ErrUnknownSpy
		}
		if s.Owner != giver {
			return fmt.Errorf("%w: spy %d", ErrNotOwner, id)
		}
	}
	return nil
}

// settleTrade validates both sides and then applies them together.
func (w *World) settleTrade(t *Trade) error {
	if err := checkBundle(w, t.Proposer, t.Responder, t.Offer); err != nil {
		t.Status, t.FailReason = TradeFailed, err.Error()
		return err
	}
	if err := checkBundle(w, t.Responder, t.Proposer, t.Request); err != nil {
		t.Status, t.FailReason = TradeFailed, err.Error()
		return err
	}
	w.give(t.Proposer, t.Responder, t.Offer)
	w.give(t.Responder, t.Proposer, t.Request)

	r := w.relation(t.Proposer, t.Responder)
	r.Favorability = clampInt(r.Favorability+2, 0, 100)
	for _, c := range w.Cities {
		if c.Owner == t.Proposer || c.Owner == t.Responder {
			c.addHappiness(2)
		}
	}
	t.Status = TradeCompleted
	t.SettledTurn = w.Room.Turn
	return nil
}

func (w *World) give(from, to PlayerID, b Bundle) {
	g, r := w.Player(from), w.Player(to)
	g.Gold -= b.Gold
	r.Gold += b.Gold
	g.Food -= b.Food
	r.Food += b.Food

	if len(b.Specialty) > 0 {
		dst := w.CitiesOf(to)[0]
		kinds := make([]Specialty, 0, len(b.Specialty))
		for s := range b.Specialty {
			kinds = append(kinds, s)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, s := range kinds {
			left := b.Specialty[s]
			for _, c := range w.CitiesOf(from) {
				k := min(left, c.Stock[s])
				c.Stock[s] -= k
				left -= k
				if left == 0 {
					break
				}
			}
			if dst.Stock == nil {
				dst.Stock = make(map[Specialty]int)
			}
			dst.Stock[s] += b.Specialty[s]
		}
	}
	for _, u := range b.Units {
		n := w.removeUnits(from, u.Tile, u.Type, u.Count)
		w.AddUnits(to, u.Tile, u.Type, n, 0)
	}
	for _, id := range b.Cities {
		w.transferCity(w.City(id), to, false)
	}
	for _, id := range b.Spies {
		s := w.Spy(id)
		s.Owner = to
		s.Mission = MissionIdle
		s.Stationed = false
	}
	if b.PeaceTreaty {
		rel := w.relation(from, to)
		if rel.Status == War || rel.Status == Hostile {
			if rel.Status == War {
				rel.Favorability = clampInt(rel.Favorability+20, 0, 100)
			}
			rel.Status = Neutral
			rel.Pending = nil
		}
	}
	if b.VisionShare {
		w.relation(from, to).SharedVision = true
	}
}

// settleTrades applies accepted trades, expires stale proposals and
// announces trades settled outside Resolution.
func (run *phaseRun) settleTrades() {
	w := run.w
	expiry := w.Room.Config.TradeExpiryTurns
	if expiry <= 0 {
		expiry = DefaultRoomConfig().TradeExpiryTurns
	}
	for _, t := range w.Trades {
		switch t.Status {
		case TradeAccepted:
			if err := w.settleTrade(t); err != nil {
				run.privateNews(NewsTrade, []PlayerID{t.Proposer, t.Responder},
					fmt.Sprintf("trade %d between %s and %s failed: %v", t.ID, run.playerName(t.Proposer), run.playerName(t.Responder), err),
					map[string]any{"trade": t.ID})
				t.Announced = true
				continue
			}
		case TradeProposed:
			if w.Room.Turn-t.ProposedTurn > expiry {
				t.Status = TradeExpired
				run.privateNews(NewsTrade, []PlayerID{t.Proposer, t.Responder},
					fmt.Sprintf("trade offer %d expired unanswered", t.ID), map[string]any{"trade": t.ID})
			}
			continue
		}
		if t.Status == TradeCompleted && !t.Announced {
			t.Announced = true
			run.privateNews(NewsTrade, []PlayerID{t.Proposer, t.Responder},
				fmt.Sprintf("%s and %s completed a trade", run.playerName(t.Proposer), run.playerName(t.Responder)),
				map[string]any{"trade": t.ID, "gold": t.Offer.Gold - t.Request.Gold})
		}
	}
	run.pruneTrades(expiry)
}

// pruneTrades drops closed trades older than the expiry window.
func (run *phaseRun) pruneTrades(expiry int) {
	w := run.w
	live := w.Trades[:0]
	for _, t := range w.Trades {
		closed := t.Status != TradeProposed && t.Status != TradeAccepted
		last := max(t.ProposedTurn, t.RespondedTurn, t.SettledTurn)
		if closed && t.Announced && last < w.Room.Turn-expiry {
			continue
		}
		if closed && t.Status != TradeCompleted && t.Status != TradeFailed && last < w.Room.Turn-expiry {
			continue
		}
		live = append(live, t)
	}
	w.Trades = live
}
