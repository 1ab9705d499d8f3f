package realm

import (
	"math"
	"math/rand"
	"strings"
)

// StrategyScoreMax bounds one side's strategy score.
const (
	StrategyScoreMax      = 30
	StrategyScoreFallback = 15
	statsScale            = 70.0
	winMargin             = 2.0
	cityDefensePerLevel   = 0.07
	cityDefenseCap        = 0.35
	lossJitter            = 0.2
)

// BattleResultKind is the outcome of one combat resolution.
type BattleResultKind string

const (
	AttackerWins BattleResultKind = "attacker_wins"
	DefenderWins BattleResultKind = "defender_wins"
	Draw         BattleResultKind = "draw"
)

// BattleInput is one pairwise fight.
type BattleInput struct {
	Attacker         Troops
	Defender         Troops
	AttackerStrategy string
	DefenderStrategy string
	Terrain          Terrain
	IsCity           bool
	CityDefenseLevel int
}

// BattleResult is the resolver's verdict with per-type losses.
type BattleResult struct {
	Result         BattleResultKind `json:"result"`
	AttackerPower  float64          `json:"attackerPower"`
	DefenderPower  float64          `json:"defenderPower"`
	AttackerScore  float64          `json:"attackerScore"`
	DefenderScore  float64          `json:"defenderScore"`
	AttackerLosses Troops           `json:"attackerLosses"`
	DefenderLosses Troops           `json:"defenderLosses"`
	Narrative      string           `json:"narrative"`
	JudgeUsed      bool             `json:"judgeUsed"`
}

// lossTier is a [lo,hi] fraction of a side's pre-battle troops.
type lossTier struct{ lo, hi float64 }

type tierPair struct{ winner, loser lossTier }

var lossTiers = []struct {
	minRatio float64
	tiers    tierPair
}{
	{2.0, tierPair{lossTier{0.1, 0.2}, lossTier{0.8, 1.0}}},
	{1.5, tierPair{lossTier{0.2, 0.3}, lossTier{0.6, 0.8}}},
	{1.2, tierPair{lossTier{0.3, 0.4}, lossTier{0.5, 0.6}}},
	{0, tierPair{lossTier{0.4, 0.5}, lossTier{0.5, 0.6}}},
}

// tiersFor returns the winner and loser loss bounds for a power ratio.
func tiersFor(ratio float64) tierPair {
	for _, t := range lossTiers {
		if ratio >= t.minRatio {
			return t.tiers
		}
	}
	return lossTiers[len(lossTiers)-1].tiers
}

// SidePower is Σ count × base × terrain × counter for one side.
func SidePower(side, opposing Troops, terrain Terrain, attacking bool) float64 {
	power := 0.0
	for _, ut := range side.Types() {
		if !ut.Fights() {
			continue
		}
		base := ut.Defense()
		mod := terrain.defenseModifier()
		if attacking {
			base = ut.Attack()
			mod = terrain.attackModifier()
		}
		power += float64(side[ut]) * base * mod * counterModifier(ut, opposing)
	}
	return power
}

// cityDefenseBonus is the defender multiplier from a city's defense level.
func cityDefenseBonus(level int) float64 {
	return 1 + math.Min(cityDefenseCap, cityDefensePerLevel*float64(level))
}

// qualifies reports whether strategy text is long enough to be judged.
func qualifies(strategy string) bool {
	return len(strings.Fields(strategy)) > 2
}

// scoreStrategies asks the judge for both sides' strategy scores. Sides
// with too little text score 0; a failed judge scores qualifying sides
// with the neutral fallback.
func (run *phaseRun) scoreStrategies(in BattleInput) (att, def float64, narrative string, used bool) {
	aq, dq := qualifies(in.AttackerStrategy), qualifies(in.DefenderStrategy)
	if !aq && !dq {
		return 0, 0, "", false
	}
	v, ok := run.callJudge(JudgeRequest{
		Attacker:         in.Attacker,
		Defender:         in.Defender,
		AttackerStrategy: in.AttackerStrategy,
		DefenderStrategy: in.DefenderStrategy,
		Terrain:          in.Terrain,
		IsCity:           in.IsCity,
		CityDefenseLevel: in.CityDefenseLevel,
	})
	if !ok {
		if aq {
			att = StrategyScoreFallback
		}
		if dq {
			def = StrategyScoreFallback
		}
		return att, def, "", false
	}
	if aq {
		att = float64(clampInt(v.AttackerScore, 0, StrategyScoreMax))
	}
	if dq {
		def = float64(clampInt(v.DefenderScore, 0, StrategyScoreMax))
	}
	return att, def, v.Narrative, true
}

// judgeBattle resolves one fight. Randomness comes only from rng.
func (run *phaseRun) judgeBattle(in BattleInput) BattleResult {
	aPow := SidePower(in.Attacker, in.Defender, in.Terrain, true)
	dPow := SidePower(in.Defender, in.Attacker, in.Terrain, false)
	if in.IsCity {
		dPow *= cityDefenseBonus(in.CityDefenseLevel)
	}

	aStats, dStats := statsScale/2, statsScale/2
	if total := aPow + dPow; total > 0 {
		aStats = statsScale * aPow / total
		dStats = statsScale * dPow / total
	}
	aStrat, dStrat, narrative, used := run.scoreStrategies(in)

	res := BattleResult{
		AttackerPower: aPow,
		DefenderPower: dPow,
		AttackerScore: aStats + aStrat,
		DefenderScore: dStats + dStrat,
		Narrative:     narrative,
		JudgeUsed:     used,
	}
	switch diff := res.AttackerScore - res.DefenderScore; {
	case diff > winMargin:
		res.Result = AttackerWins
	case diff < -winMargin:
		res.Result = DefenderWins
	default:
		res.Result = Draw
	}

	aTier, dTier := battleTiers(res.Result, aPow, dPow)
	res.AttackerLosses = rollLosses(run.rng, in.Attacker, aTier)
	res.DefenderLosses = rollLosses(run.rng, in.Defender, dTier)
	if res.Narrative == "" {
		res.Narrative = defaultNarrative(res.Result)
	}
	return res
}

// battleTiers picks each side's loss bounds. In a draw the side with more
// power takes the winner's draw tier.
func battleTiers(result BattleResultKind, aPow, dPow float64) (att, def lossTier) {
	switch result {
	case AttackerWins:
		t := tiersFor(powerRatio(aPow, dPow))
		return t.winner, t.loser
	case DefenderWins:
		t := tiersFor(powerRatio(dPow, aPow))
		return t.loser, t.winner
	}
	draw := lossTiers[len(lossTiers)-1].tiers
	if aPow >= dPow {
		return draw.winner, draw.loser
	}
	return draw.loser, draw.winner
}

func powerRatio(winner, loser float64) float64 {
	if loser <= 0 {
		return math.Inf(1)
	}
	return winner / loser
}

// rollLosses draws a ratio inside the tier with ±20% jitter, clamps it to
// the tier and floors it per unit type. A floor that falls under the tier
// is lifted to the smallest whole loss inside it when one exists.
func rollLosses(rng *rand.Rand, side Troops, t lossTier) Troops {
	out := make(Troops)
	for _, ut := range side.Types() {
		c := side[ut]
		if c <= 0 {
			continue
		}
		r := t.lo + rng.Float64()*(t.hi-t.lo)
		r *= 1 + (rng.Float64()*2-1)*lossJitter
		r = clampFloat(r, t.lo, t.hi)
		loss := int(math.Floor(float64(c) * r))
		floorHi := int(math.Floor(float64(c) * t.hi))
		ceilLo := int(math.Ceil(float64(c) * t.lo))
		if loss < ceilLo && ceilLo <= floorHi {
			loss = ceilLo
		}
		if loss > 0 {
			out[ut] = min(loss, c)
		}
	}
	return out
}

func defaultNarrative(r BattleResultKind) string {
	switch r {
	case AttackerWins:
		return "The attackers broke the defending line."
	case DefenderWins:
		return "The defenders held and threw the assault back."
	}
	return "Both armies fell back bloodied with no clear victor."
}
