package bot

import (
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Acceptance thresholds for stance improvements.
const (
	acceptFavorability = 45
	acceptGrudgeLimit  = 3
)

func favorability(w *realm.World, a, b realm.PlayerID) int {
	if r := w.Relation(a, b); r != nil {
		return r.Favorability
	}
	return 50
}

// acceptsStance decides whether responder takes an improvement from
// requester. Peace offers are taken whenever responder is under threat.
func acceptsStance(w *realm.World, responder, requester realm.PlayerID, status realm.Stance, grudge int, threatened bool) bool {
	if threatened && status == realm.Neutral && w.AtWar(responder, requester) {
		return true
	}
	return grudge < acceptGrudgeLimit && favorability(w, responder, requester) >= acceptFavorability
}

// answerProposals responds on the world to every stance improvement
// waiting on tp.p.
func (tp *turnPlan) answerProposals() {
	me := tp.p.ID
	for _, r := range tp.w.Relations {
		pr := r.Pending
		if pr == nil || pr.Accepted || pr.Requester == me || (r.A != me && r.B != me) {
			continue
		}
		if pr.Status.Worse(r.Status) {
			continue
		}
		accept := acceptsStance(tp.w, me, pr.Requester, pr.Status, tp.mem.Grudges[pr.Requester], len(tp.mem.Threatened) > 0)
		if err := tp.w.RespondStance(me, pr.Requester, accept); err != nil {
			tp.log.Debug().Err(err).Int64("requester", int64(pr.Requester)).Msg("answer proposal")
		}
	}
}

// bundleValue prices a bundle in gold.
func bundleValue(w *realm.World, b realm.Bundle) int {
	v := b.Gold + b.Food
	for _, n := range b.Specialty {
		v += 3 * n
	}
	for _, u := range b.Units {
		v += u.Count * u.Type.Cost()
	}
	for _, id := range b.Cities {
		if c := w.City(id); c != nil {
			v += 10 * c.Grade.InitialTroops()
		}
	}
	v += realm.SpyCost * len(b.Spies)
	if b.VisionShare {
		v += 50
	}
	return v
}

// acceptsTrade takes a trade that gains value and never gives a city.
func (tp *turnPlan) acceptsTrade(t *realm.Trade) bool {
	if len(t.Request.Cities) > 0 || len(t.Request.Units) > 0 || len(t.Request.Spies) > 0 {
		return false
	}
	if tp.mem.Grudges[t.Proposer] >= acceptGrudgeLimit && !t.Offer.PeaceTreaty {
		return false
	}
	gain, cost := bundleValue(tp.w, t.Offer), bundleValue(tp.w, t.Request)
	if t.Offer.PeaceTreaty && len(tp.mem.Threatened) > 0 {
		return cost <= tp.p.Gold/2
	}
	return gain >= cost
}

func (tp *turnPlan) answerTrades() {
	for _, t := range tp.w.PendingTradesFor(tp.p.ID) {
		if err := realm.RespondTrade(tp.w, tp.p.ID, t.ID, tp.acceptsTrade(t)); err != nil {
			tp.log.Debug().Err(err).Int64("trade", int64(t.ID)).Msg("answer trade")
		}
	}
}

// blockedOrders decides every blocked standing order of tp.p. These
// answers do not count against the action budget.
func (tp *turnPlan) blockedOrders() []realm.Action {
	var out []realm.Action
	for _, am := range tp.w.AutoMoves {
		if am.Owner != tp.p.ID || am.Status != realm.AutoBlocked {
			continue
		}
		d := realm.DecideCancel
		switch am.BlockReason {
		case realm.BlockEnemy:
			mine := tp.w.TroopsOf(tp.p.ID, am.Position()).Total()
			theirs := 0
			if t := tp.w.Tile(am.BlockTile); t != nil {
				theirs = t.Troops
			}
			if float64(mine) >= 1.3*float64(theirs)*(1.5-tp.mem.Personality.Risk/2) {
				d = realm.DecideAttack
			} else {
				d = realm.DecideRetreat
			}
		case realm.BlockDiplomacy:
			if tp.w.AtWar(tp.p.ID, am.BlockPlayer) {
				d = realm.DecideAttack
			}
		}
		a := realm.AutoMoveAction{Order: am.ID, Decision: d}
		if d == realm.DecideAttack {
			a.Strategy = battlePlans[tp.rng.Intn(len(battlePlans))]
		}
		out = append(out, a)
	}
	return out
}

// --- Diplomacy ---

func (tp *turnPlan) diplomacyCandidates() []candidate {
	me := tp.p.ID
	mine := tp.w.TotalTroops(me)
	var out []candidate
	for _, o := range tp.w.ActivePlayers() {
		if o.ID == me || tp.w.SameNation(me, o.ID) {
			continue
		}
		if r := tp.w.Relation(me, o.ID); r != nil && r.Pending != nil {
			continue
		}
		theirs := tp.w.TotalTroops(o.ID)
		st := tp.w.Stance(me, o.ID)
		fav := favorability(tp.w, me, o.ID)
		grudge := tp.mem.Grudges[o.ID]

		var (
			want  realm.Stance
			bonus float64
		)
		switch {
		case st == realm.War && (len(tp.mem.Threatened) > 0 || mine < theirs):
			want, bonus = realm.Neutral, 0.5
		case st == realm.Hostile && grudge == 0 && fav >= 50:
			want, bonus = realm.Neutral, 0.2
		case st == realm.Neutral && grudge == 0 && fav >= 65:
			want, bonus = realm.Friendly, 0.3
		case st == realm.Friendly && fav >= 80:
			want, bonus = realm.Alliance, 0.3
		case st != realm.War && !tp.w.Friendly(me, o.ID) && grudge >= acceptGrudgeLimit &&
			float64(mine) > 1.3*float64(theirs) && tp.mem.Phase != PhaseExpansion:
			want, bonus = realm.War, 0.3*tp.mem.Personality.Risk
		default:
			continue
		}
		out = append(out, tp.stanceCandidate(o, want, bonus))
	}
	return out
}

// stanceCandidate proposes to a human through the queue. Between AIs
// the target answers at once so the proposal survives Resolution.
func (tp *turnPlan) stanceCandidate(o *realm.Player, want realm.Stance, bonus float64) candidate {
	me := tp.p.ID
	if !o.IsAI {
		return candidate{
			kind:   KindDiplomacy,
			action: realm.DiplomacyAction{Op: realm.DiplomacyPropose, Target: o.ID, Status: want},
			bonus:  bonus,
		}
	}
	w := tp.w
	return candidate{
		kind:  KindDiplomacy,
		bonus: bonus,
		now: func() error {
			prev := w.Stance(me, o.ID)
			if err := w.ProposeStance(me, o.ID, want); err != nil {
				return err
			}
			if want.Worse(prev) {
				return nil
			}
			accept := acceptsStance(w, o.ID, me, want, 0, len(ThreatenedCities(w, o.ID)) > 0)
			return w.RespondStance(o.ID, me, accept)
		},
	}
}

const tradeLot = 300

func (tp *turnPlan) tradeCandidates() []candidate {
	var offer, request realm.Bundle
	switch {
	case tp.p.Food < lowFood && tp.p.Gold > 2*tradeLot:
		offer, request = realm.Bundle{Gold: tradeLot}, realm.Bundle{Food: tradeLot}
	case tp.p.Gold < lowGold && tp.p.Food > 4*tradeLot:
		offer, request = realm.Bundle{Food: tradeLot}, realm.Bundle{Gold: tradeLot}
	default:
		return nil
	}
	me := tp.p.ID
	for _, o := range tp.w.ActivePlayers() {
		if o.ID == me || tp.w.AtWar(me, o.ID) {
			continue
		}
		if o.Gold < request.Gold || o.Food < request.Food {
			continue
		}
		if !o.IsAI {
			return []candidate{{
				kind:   KindDiplomacy,
				action: realm.TradeAction{Op: realm.TradePropose, Responder: o.ID, Offer: offer, Request: request},
				bonus:  0.4,
			}}
		}
		w, partner := tp.w, o.ID
		return []candidate{{
			kind:  KindDiplomacy,
			bonus: 0.5,
			cost:  offer.Gold,
			now: func() error {
				_, err := realm.SettleTradeNow(w, me, partner, offer, request)
				return err
			},
		}}
	}
	return nil
}

// --- Espionage ---

func (tp *turnPlan) espionageCandidates() []candidate {
	me := tp.p.ID
	var out []candidate
	spies := tp.w.SpiesOf(me)

	if len(spies) == 0 && tp.p.Gold >= realm.SpyCost+200 {
		for _, c := range tp.w.CitiesOf(me) {
			if c.BuildingLevel(realm.SpyAcademy) > 0 {
				out = append(out, candidate{
					kind:   KindEspionage,
					action: realm.RecruitAction{City: c.ID, Unit: realm.Spy, Count: 1},
					bonus:  0.3,
					cost:   realm.SpyCost,
				})
				break
			}
		}
	}

	for _, s := range spies {
		here := tp.w.Tile(s.Tile)
		if here == nil {
			continue
		}
		if c := tp.w.City(here.City); c != nil && c.Owner != me && c.Owner != 0 && !c.Incited &&
			tp.w.AtWar(me, c.Owner) && tp.p.Gold >= realm.CivilWarCost+200 {
			out = append(out, candidate{
				kind:   KindEspionage,
				action: realm.CivilWarAction{City: c.ID},
				bonus:  0.5,
				cost:   realm.CivilWarCost,
			})
			continue
		}
		if s.Mission != realm.MissionIdle || tp.w.Room.Turn-s.CreatedTurn < realm.SpyCooldownTurns {
			continue
		}
		target := tp.spyTarget(here)
		if target == nil {
			continue
		}
		mission, bonus := realm.MissionRecon, 0.2
		switch {
		case tp.w.AtWar(me, target.Owner) && tp.rng.Float64() < 0.5:
			mission, bonus = realm.MissionSabotage, 0.5
		case tp.p.Gold < lowGold:
			mission, bonus = realm.MissionTheft, 0.4
		}
		out = append(out, candidate{
			kind:   KindEspionage,
			action: realm.EspionageAction{Spy: s.ID, Mission: mission, Target: target.Center},
			bonus:  bonus,
		})
	}
	return out
}

// spyTarget is the nearest unfriendly city.
func (tp *turnPlan) spyTarget(from *realm.Tile) *realm.City {
	var best *realm.City
	bestDist := 0
	for _, c := range tp.w.Cities {
		if c.Owner == 0 || tp.w.Friendly(tp.p.ID, c.Owner) {
			continue
		}
		t := tp.w.Tile(c.Center)
		if t == nil {
			continue
		}
		if d := realm.HexDistance(from.Coord, t.Coord); best == nil || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
