package bot

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Kind groups candidate actions for scoring.
type Kind string

const (
	KindBuild     Kind = "build"
	KindRecruit   Kind = "recruit"
	KindMove      Kind = "move"
	KindAttack    Kind = "attack"
	KindDiplomacy Kind = "diplomacy"
	KindEspionage Kind = "espionage"
)

// phaseBase is the base weight of each kind per strategic phase.
var phaseBase = map[Phase]map[Kind]float64{
	PhaseExpansion: {
		KindBuild: 1.0, KindRecruit: 0.8, KindMove: 0.9, KindAttack: 0.4, KindDiplomacy: 0.6, KindEspionage: 0.3,
	},
	PhaseConsolidation: {
		KindBuild: 0.8, KindRecruit: 0.9, KindMove: 0.6, KindAttack: 0.8, KindDiplomacy: 0.7, KindEspionage: 0.6,
	},
	PhaseVictory: {
		KindBuild: 0.4, KindRecruit: 1.0, KindMove: 0.7, KindAttack: 1.2, KindDiplomacy: 0.4, KindEspionage: 0.7,
	},
}

func (pers Personality) weight(k Kind) float64 {
	switch k {
	case KindBuild:
		return pers.Economy
	case KindRecruit:
		return pers.Military
	case KindMove:
		return pers.Expansion
	case KindAttack:
		return pers.Military * (0.5 + pers.Risk/2)
	case KindDiplomacy:
		return pers.Diplomacy
	case KindEspionage:
		return pers.Espionage
	}
	return 1
}

// candidate is one scored option. Exactly one of action or now is set:
// now runs immediately during planning (AI to AI deals).
type candidate struct {
	kind   Kind
	action realm.Action
	now    func() error
	bonus  float64
	cost   int
	source realm.TileID
	score  float64
}

// turnPlan is the working state of one player's planning pass.
type turnPlan struct {
	w   *realm.World
	p   *realm.Player
	mem *Memory
	rng *rand.Rand
	log zerolog.Logger
}

func (tp *turnPlan) score(cs []candidate) {
	base := phaseBase[tp.mem.Phase]
	for i := range cs {
		cs[i].score = (base[cs[i].kind] + cs[i].bonus) * tp.mem.Personality.weight(cs[i].kind)
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].score > cs[j].score })
}

// pick commits the best candidates within the action budget, skipping
// ones the remaining gold cannot cover or whose troops are already used.
func (tp *turnPlan) pick(cs []candidate, budget int) []candidate {
	gold := tp.p.Gold
	used := make(map[realm.TileID]bool)
	var out []candidate
	for _, c := range cs {
		if len(out) >= budget {
			break
		}
		if c.cost > gold {
			continue
		}
		if c.source != 0 {
			if used[c.source] {
				continue
			}
			used[c.source] = true
		}
		gold -= c.cost
		out = append(out, c)
	}
	return out
}

func (tp *turnPlan) candidates() []candidate {
	var cs []candidate
	cs = append(cs, tp.buildCandidates()...)
	cs = append(cs, tp.taxCandidates()...)
	cs = append(cs, tp.recruitCandidates()...)
	cs = append(cs, tp.moveCandidates()...)
	cs = append(cs, tp.attackCandidates()...)
	cs = append(cs, tp.diplomacyCandidates()...)
	cs = append(cs, tp.tradeCandidates()...)
	cs = append(cs, tp.espionageCandidates()...)
	return cs
}

// --- Economy ---

// nextLevel is the level a new build order for kind would reach.
func nextLevel(c *realm.City, kind realm.BuildingKind) int {
	next := 1
	if b := c.Buildings[kind]; b != nil {
		next = b.Level + 1
	}
	for _, o := range c.BuildQueue {
		if o.Kind == kind {
			next++
		}
	}
	return next
}

const (
	maxBuildingLevel = 5
	maxBuildQueue    = 3
	lowGold          = 400
	lowFood          = 300
)

func (tp *turnPlan) buildCandidates() []candidate {
	var out []candidate
	for _, c := range tp.w.CitiesOf(tp.p.ID) {
		if len(c.BuildQueue) >= maxBuildQueue {
			continue
		}
		type option struct {
			kind  realm.BuildingKind
			bonus float64
		}
		opts := []option{
			{realm.Farm, 0.1},
			{realm.Market, 0.15},
			{realm.Barracks, 0.1 * tp.mem.Personality.Military},
			{realm.Watchtower, 0.05},
		}
		if c.Grade == realm.Capital {
			opts = append(opts, option{realm.SpyAcademy, 0.1 * tp.mem.Personality.Espionage})
		}
		if tp.mem.threatened(c.ID) {
			opts = append(opts, option{realm.Walls, 0.8})
		}
		if tp.p.Food < lowFood {
			opts[0].bonus += 0.5
		}
		if tp.p.Gold < lowGold {
			opts[1].bonus += 0.5
		}

		best, bestBonus, bestCost := realm.BuildingKind(""), -1.0, 0
		for _, o := range opts {
			lvl := nextLevel(c, o.kind)
			if lvl > maxBuildingLevel {
				continue
			}
			// Prefer breadth: each existing level lowers the appeal.
			b := o.bonus - 0.05*float64(lvl-1)
			if b > bestBonus {
				best, bestBonus, bestCost = o.kind, b, o.kind.Cost()*lvl
			}
		}
		if best == "" {
			continue
		}
		out = append(out, candidate{
			kind:   KindBuild,
			action: realm.BuildAction{City: c.ID, Building: best},
			bonus:  bestBonus,
			cost:   bestCost,
		})
	}
	return out
}

func (tp *turnPlan) taxCandidates() []candidate {
	cities := tp.w.CitiesOf(tp.p.ID)
	if len(cities) == 0 {
		return nil
	}
	happy, rate := 0, 0.0
	for _, c := range cities {
		happy += c.Happiness
		rate += c.TaxRate
	}
	happy /= len(cities)
	rate /= float64(len(cities))

	switch {
	case tp.p.Gold < lowGold/2 && happy >= 40 && rate < 0.3:
		return []candidate{{kind: KindBuild, action: realm.TaxAction{Rate: 0.3}, bonus: 0.5}}
	case happy < 35 && rate > 0.1:
		return []candidate{{kind: KindBuild, action: realm.TaxAction{Rate: 0.1}, bonus: 0.6}}
	}
	return nil
}

func (tp *turnPlan) recruitCandidates() []candidate {
	var out []candidate
	total := tp.w.TotalTroops(tp.p.ID)
	for _, c := range tp.w.CitiesOf(tp.p.ID) {
		unit := realm.Infantry
		if c.BuildingLevel(realm.Barracks) > 0 && tp.rng.Float64() < 0.4*tp.mem.Personality.Military {
			unit = realm.Cavalry
		}
		count := min(tp.p.Gold/3/unit.Cost(), c.Population-1, 300)
		if count < 20 {
			continue
		}
		bonus := 0.0
		if tp.mem.threatened(c.ID) {
			bonus += 0.9
		}
		if total < 300 {
			bonus += 0.5
		}
		if tp.mem.Phase == PhaseVictory {
			bonus += 0.2
		}
		out = append(out, candidate{
			kind:   KindRecruit,
			action: realm.RecruitAction{City: c.ID, Unit: unit, Count: count},
			bonus:  bonus,
			cost:   count * unit.Cost(),
		})
	}
	return out
}

// --- Military ---

type stack struct {
	tile   *realm.Tile
	troops realm.Troops
}

// stacks lists p's tiles holding at least minStack fighting units outside
// open battlefields, in tile order.
func (tp *turnPlan) stacks(minStack int) []stack {
	var out []stack
	for _, t := range tp.w.Tiles {
		tr := tp.w.TroopsOf(tp.p.ID, t.ID)
		if tr.Total() < minStack || tp.w.BattlefieldOn(t.ID) != nil {
			continue
		}
		out = append(out, stack{tile: t, troops: tr})
	}
	return out
}

func (tp *turnPlan) moveCandidates() []candidate {
	var out []candidate
	for _, s := range tp.stacks(100) {
		types := s.troops.Types()

		// Reinforce the closest threatened city.
		var best *realm.Tile
		bestDist := math.MaxInt
		for _, id := range tp.mem.Threatened {
			c := tp.w.City(id)
			if c == nil {
				continue
			}
			center := tp.w.Tile(c.Center)
			if center == nil || center.ID == s.tile.ID {
				continue
			}
			if d := realm.HexDistance(s.tile.Coord, center.Coord); d < bestDist {
				best, bestDist = center, d
			}
		}
		if best != nil && s.tile.City == 0 && realm.FindPath(tp.w, tp.p.ID, s.tile.ID, best.ID, types) != nil {
			out = append(out, candidate{
				kind:   KindMove,
				action: realm.MoveAction{From: s.tile.ID, To: best.ID},
				bonus:  0.6,
				source: s.tile.ID,
			})
			continue
		}

		// Claim nearby empty land.
		for r := 1; r <= 3; r++ {
			if t := tp.freeLandAt(s.tile, r, types); t != nil {
				bonus := 0.0
				if tp.mem.Phase == PhaseExpansion {
					bonus = 0.3
				}
				out = append(out, candidate{
					kind:   KindMove,
					action: realm.MoveAction{From: s.tile.ID, To: t.ID},
					bonus:  bonus,
					source: s.tile.ID,
				})
				break
			}
		}
	}
	return out
}

func (tp *turnPlan) freeLandAt(from *realm.Tile, r int, types []realm.UnitType) *realm.Tile {
	for _, h := range from.Coord.Ring(r) {
		t := tp.w.TileAt(h)
		if t == nil || t.Owner != 0 || t.Troops > 0 || t.Terrain.IsWater() {
			continue
		}
		if realm.FindPath(tp.w, tp.p.ID, from.ID, t.ID, types) != nil {
			return t
		}
	}
	return nil
}

var battlePlans = []string{
	"pin the center with infantry while cavalry sweeps the left flank",
	"feint a frontal push then strike the weakest side at dusk",
	"advance behind archer volleys and hold the high ground",
	"encircle the position and cut the supply road before assaulting",
	"storm the walls at first light with every reserve committed",
}

func (tp *turnPlan) attackCandidates() []candidate {
	var out []candidate
	minRatio := 1.2 + 0.5*math.Max(0, 1.2-tp.mem.Personality.Risk)
	for _, s := range tp.stacks(100) {
		send := s.troops
		if s.tile.City != 0 {
			// Leave half behind in a city.
			send = realm.Troops{}
			for ut, n := range s.troops {
				if n/2 > 0 {
					send[ut] = n / 2
				}
			}
		}
		strength := send.Total()
		if strength == 0 {
			continue
		}
		types := send.Types()

		var (
			target    *realm.Tile
			bestBonus float64
		)
		for _, t := range tp.w.TilesWithin(s.tile.Coord, 4) {
			if t.Owner == 0 || t.Owner == tp.p.ID || tp.w.Friendly(tp.p.ID, t.Owner) {
				continue
			}
			st := tp.w.Stance(tp.p.ID, t.Owner)
			if st != realm.War && st != realm.Hostile {
				continue
			}
			ratio := float64(strength) / float64(max(1, t.Troops))
			if ratio < minRatio {
				continue
			}
			bonus := math.Min(0.6, 0.2*ratio) + 0.05*float64(tp.mem.Grudges[t.Owner])
			if c := tp.w.City(t.City); c != nil && c.Center == t.ID {
				bonus += 0.3
				if c.Grade == realm.Capital {
					bonus += 0.2
				}
			}
			if bonus > bestBonus && realm.FindAttackPath(tp.w, tp.p.ID, s.tile.ID, t.ID, types) != nil {
				target, bestBonus = t, bonus
			}
		}
		if target == nil {
			continue
		}
		out = append(out, candidate{
			kind: KindAttack,
			action: realm.AttackAction{
				From:     s.tile.ID,
				To:       target.ID,
				Units:    send,
				Strategy: battlePlans[tp.rng.Intn(len(battlePlans))],
			},
			bonus:  bestBonus,
			source: s.tile.ID,
		})
	}
	return out
}
