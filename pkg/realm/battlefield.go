package realm

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// MaxBattleRoundsPerTurn bounds how many team passes a battlefield gets per turn.
const MaxBattleRoundsPerTurn = 3

// BattlefieldState is open while more than one team stands on the tile.
type BattlefieldState string

const (
	BattleOpen     BattlefieldState = "open"
	BattleResolved BattlefieldState = "resolved"
)

// Role is how a player entered the battlefield.
type Role string

const (
	RoleAttacker   Role = "attacker"
	RoleDefender   Role = "defender"
	RoleIntervener Role = "intervener"
)

// Participant is one player's membership in a battlefield.
type Participant struct {
	Player     PlayerID `json:"player"`
	Role       Role     `json:"role"`
	JoinedTurn int      `json:"joinedTurn"`
	LeftTurn   int      `json:"leftTurn,omitempty"`
	Retreat    bool     `json:"retreat,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
}

// Battlefield is a persistent fight on one tile resolved over turns.
type Battlefield struct {
	ID           BattlefieldID    `json:"id"`
	Tile         TileID           `json:"tile"`
	State        BattlefieldState `json:"state"`
	Participants []Participant    `json:"participants"`
	CreatedTurn  int              `json:"createdTurn"`
	ResolvedTurn int              `json:"resolvedTurn,omitempty"`
	Winner       PlayerID         `json:"winner,omitempty"`
	Rounds       int              `json:"rounds"`
}

// BattleOutcome is one pairwise fight reported to the host.
type BattleOutcome struct {
	Battlefield BattlefieldID `json:"battlefield"`
	Tile        TileID        `json:"tile"`
	Turn        int           `json:"turn"`
	Attackers   []PlayerID    `json:"attackers"`
	Defenders   []PlayerID    `json:"defenders"`
	Attacking   Troops        `json:"attacking"`
	Defending   Troops        `json:"defending"`
	Result      BattleResult  `json:"result"`
}

func (bf *Battlefield) participant(p PlayerID) *Participant {
	for i := range bf.Participants {
		if bf.Participants[i].Player == p && bf.Participants[i].LeftTurn == 0 {
			return &bf.Participants[i]
		}
	}
	return nil
}

func (bf *Battlefield) active() []PlayerID {
	var out []PlayerID
	for _, pt := range bf.Participants {
		if pt.LeftTurn == 0 {
			out = append(out, pt.Player)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// openBattlefieldOn returns the open battlefield on a tile, or nil.
func (w *World) openBattlefieldOn(tile TileID) *Battlefield {
	for _, bf := range w.Battlefields {
		if bf.Tile == tile && bf.State == BattleOpen {
			return bf
		}
	}
	return nil
}

// BattlefieldOn is the exported lookup used by planners and hosts.
func (w *World) BattlefieldOn(tile TileID) *Battlefield { return w.openBattlefieldOn(tile) }

// joinBattlefield puts p into the fight on a tile, opening one with the
// given enemies as defenders when none exists.
func (run *phaseRun) joinBattlefield(tile TileID, p PlayerID, enemies []PlayerID, strategy string) *Battlefield {
	w := run.w
	turn := w.Room.Turn
	bf := w.openBattlefieldOn(tile)
	if bf == nil {
		bf = &Battlefield{ID: BattlefieldID(w.NextID()), Tile: tile, State: BattleOpen, CreatedTurn: turn}
		for _, e := range enemies {
			bf.Participants = append(bf.Participants, Participant{Player: e, Role: RoleDefender, JoinedTurn: turn})
		}
		bf.Participants = append(bf.Participants, Participant{Player: p, Role: RoleAttacker, JoinedTurn: turn, Strategy: strategy})
		w.Battlefields = append(w.Battlefields, bf)
		run.globalNews(NewsBattle, fmt.Sprintf("%s opened a battle at tile %d", run.playerName(p), tile),
			map[string]any{"battlefield": bf.ID, "tile": tile, "attacker": p, "defenders": enemies})
		return bf
	}
	if pt := bf.participant(p); pt != nil {
		if strategy != "" {
			pt.Strategy = strategy
		}
		return bf
	}
	bf.Participants = append(bf.Participants, Participant{Player: p, Role: RoleIntervener, JoinedTurn: turn, Strategy: strategy})
	run.privateNews(NewsBattle, append(bf.active(), p),
		fmt.Sprintf("%s joined the battle at tile %d", run.playerName(p), tile), map[string]any{"battlefield": bf.ID})
	return bf
}

// resolveBattlefields runs every open battlefield once for this turn.
func (run *phaseRun) resolveBattlefields() {
	w := run.w
	for _, bf := range w.Battlefields {
		if bf.State != BattleOpen {
			continue
		}
		run.resolveBattlefield(bf)
	}
	live := w.Battlefields[:0]
	for _, bf := range w.Battlefields {
		if bf.State == BattleResolved && bf.ResolvedTurn < w.Room.Turn-1 {
			continue
		}
		live = append(live, bf)
	}
	w.Battlefields = live
}

func (run *phaseRun) resolveBattlefield(bf *Battlefield) {
	w := run.w
	tile := w.Tile(bf.Tile)
	if tile == nil {
		bf.State = BattleResolved
		bf.ResolvedTurn = w.Room.Turn
		return
	}
	run.processRetreats(bf)
	run.syncParticipants(bf)

	for round := 0; round < MaxBattleRoundsPerTurn; round++ {
		teams := run.teams(bf)
		if len(teams) <= 1 {
			break
		}
		strongest := teams[0]
		for _, other := range teams[1:] {
			if run.teamTroops(bf, strongest).Total() == 0 {
				break
			}
			run.fight(bf, tile, strongest, other)
		}
		bf.Rounds++
		run.syncParticipants(bf)
	}

	teams := run.teams(bf)
	if len(teams) > 1 {
		return
	}
	bf.State = BattleResolved
	bf.ResolvedTurn = w.Room.Turn
	if len(teams) == 0 {
		run.globalNews(NewsBattle, fmt.Sprintf("the battle at tile %d left no survivors", tile.ID),
			map[string]any{"battlefield": bf.ID})
		return
	}
	bf.Winner = run.largestContributor(bf.Tile, teams[0])
	run.occupy(bf.Winner, tile)
	run.globalNews(NewsBattle, fmt.Sprintf("%s won the battle at tile %d", run.playerName(bf.Winner), tile.ID),
		map[string]any{"battlefield": bf.ID, "winner": bf.Winner, "team": teams[0]})
}

// processRetreats withdraws participants who asked to leave.
func (run *phaseRun) processRetreats(bf *Battlefield) {
	w := run.w
	for i := range bf.Participants {
		pt := &bf.Participants[i]
		if !pt.Retreat || pt.LeftTurn != 0 {
			continue
		}
		pt.Retreat = false
		troops := w.TroopsOf(pt.Player, bf.Tile)
		if troops.Total() > 0 {
			dst := NearestSafeTile(w, pt.Player, bf.Tile, troops.Types())
			if dst == 0 {
				run.privateNews(NewsBattle, []PlayerID{pt.Player}, "no safe ground to retreat to; the army fights on",
					map[string]any{"battlefield": bf.ID})
				continue
			}
			w.transferUnits(pt.Player, bf.Tile, dst, troops)
		}
		pt.LeftTurn = w.Room.Turn
		run.privateNews(NewsBattle, append(bf.active(), pt.Player),
			fmt.Sprintf("%s withdrew from the battle at tile %d", run.playerName(pt.Player), bf.Tile),
			map[string]any{"battlefield": bf.ID})
	}
}

// syncParticipants marks empty participants as gone and enrolls any stack
// that arrived on the tile outside a move.
func (run *phaseRun) syncParticipants(bf *Battlefield) {
	w := run.w
	for i := range bf.Participants {
		pt := &bf.Participants[i]
		if pt.LeftTurn == 0 && w.TroopsOf(pt.Player, bf.Tile).Total() == 0 {
			pt.LeftTurn = w.Room.Turn
		}
	}
	for _, o := range w.OccupantsOf(bf.Tile) {
		if bf.participant(o) == nil && w.TroopsOf(o, bf.Tile).Total() > 0 {
			bf.Participants = append(bf.Participants, Participant{Player: o, Role: RoleIntervener, JoinedTurn: w.Room.Turn})
		}
	}
}

// teams groups active participants greedily by mutual friendliness and
// orders them strongest first.
func (run *phaseRun) teams(bf *Battlefield) [][]PlayerID {
	w := run.w
	var teams [][]PlayerID
	for _, p := range bf.active() {
		placed := false
		for i, team := range teams {
			friendly := true
			for _, m := range team {
				if !w.Friendly(p, m) {
					friendly = false
					break
				}
			}
			if friendly {
				teams[i] = append(team, p)
				placed = true
				break
			}
		}
		if !placed {
			teams = append(teams, []PlayerID{p})
		}
	}
	sort.SliceStable(teams, func(i, j int) bool {
		ti, tj := run.teamTroops(bf, teams[i]).Total(), run.teamTroops(bf, teams[j]).Total()
		if ti != tj {
			return ti > tj
		}
		return teams[i][0] < teams[j][0]
	})
	return teams
}

func (run *phaseRun) teamTroops(bf *Battlefield, team []PlayerID) Troops {
	sum := make(Troops)
	for _, p := range team {
		sum.add(run.w.TroopsOf(p, bf.Tile))
	}
	return sum
}

// defends reports whether a team holds the tile or entered as a defender.
func (run *phaseRun) defends(bf *Battlefield, tile *Tile, team []PlayerID) bool {
	for _, p := range team {
		if p == tile.Owner {
			return true
		}
		for _, pt := range bf.Participants {
			if pt.Player == p && pt.LeftTurn == 0 && pt.Role == RoleDefender {
				return true
			}
		}
	}
	return false
}

func (run *phaseRun) teamStrategy(bf *Battlefield, team []PlayerID) string {
	for _, p := range team {
		if pt := bf.participant(p); pt != nil && pt.Strategy != "" {
			return pt.Strategy
		}
	}
	return ""
}

// fight resolves the strongest team against one weaker team and applies losses.
func (run *phaseRun) fight(bf *Battlefield, tile *Tile, strong, weak []PlayerID) {
	attackers, defenders := strong, weak
	if run.defends(bf, tile, strong) && !run.defends(bf, tile, weak) {
		attackers, defenders = weak, strong
	}
	att, def := run.teamTroops(bf, attackers), run.teamTroops(bf, defenders)
	if att.Total() == 0 || def.Total() == 0 {
		return
	}
	in := BattleInput{
		Attacker:         att,
		Defender:         def,
		AttackerStrategy: run.teamStrategy(bf, attackers),
		DefenderStrategy: run.teamStrategy(bf, defenders),
		Terrain:          tile.Terrain,
	}
	if c := run.w.City(tile.City); c != nil && c.Center == tile.ID {
		in.IsCity = true
		in.CityDefenseLevel = c.DefenseLevel()
	}
	res := run.judgeBattle(in)
	run.distributeLosses(bf.Tile, attackers, att, res.AttackerLosses)
	run.distributeLosses(bf.Tile, defenders, def, res.DefenderLosses)
	run.battleMorale(bf.Tile, attackers, defenders, res.Result)

	run.res.Battles = append(run.res.Battles, BattleOutcome{
		Battlefield: bf.ID,
		Tile:        bf.Tile,
		Turn:        run.w.Room.Turn,
		Attackers:   attackers,
		Defenders:   defenders,
		Attacking:   att,
		Defending:   def,
		Result:      res,
	})
	involved := append(append([]PlayerID(nil), attackers...), defenders...)
	run.globalNews(NewsBattle, fmt.Sprintf("battle at tile %d (%s): attackers lost %s, defenders lost %s. %s",
		bf.Tile, res.Result, humanize.Comma(int64(res.AttackerLosses.Total())),
		humanize.Comma(int64(res.DefenderLosses.Total())), res.Narrative),
		map[string]any{"battlefield": bf.ID, "players": involved, "result": res.Result})
}

// distributeLosses spreads a team's per-type losses over its members'
// stacks pro rata, floored, with the remainder handed out by player id.
func (run *phaseRun) distributeLosses(tile TileID, team []PlayerID, pre, losses Troops) {
	w := run.w
	for _, ut := range losses.Types() {
		total := pre[ut]
		loss := min(losses[ut], total)
		if total == 0 || loss == 0 {
			continue
		}
		shares := make([]int, len(team))
		counts := make([]int, len(team))
		assigned := 0
		for i, p := range team {
			counts[i] = w.TroopsOf(p, tile)[ut]
			shares[i] = loss * counts[i] / total
			assigned += shares[i]
		}
		for i := 0; assigned < loss; i = (i + 1) % len(team) {
			if shares[i] < counts[i] {
				shares[i]++
				assigned++
			}
		}
		for i, p := range team {
			w.removeUnits(p, tile, ut, shares[i])
		}
	}
}

func (run *phaseRun) battleMorale(tile TileID, attackers, defenders []PlayerID, r BattleResultKind) {
	winners, losers := attackers, defenders
	switch r {
	case DefenderWins:
		winners, losers = defenders, attackers
	case Draw:
		return
	}
	for _, u := range run.w.UnitsOn(tile) {
		for _, p := range winners {
			if u.Owner == p {
				u.Experience++
			}
		}
		for _, p := range losers {
			if u.Owner == p {
				u.Morale = max(0, u.Morale-10)
			}
		}
	}
}

func (run *phaseRun) largestContributor(tile TileID, team []PlayerID) PlayerID {
	best, most := team[0], -1
	for _, p := range team {
		if n := run.w.TroopsOf(p, tile).Total(); n > most {
			best, most = p, n
		}
	}
	return best
}
