package realm

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Mission is what a deployed spy does on arrival.
type Mission string

const (
	MissionIdle                Mission = "idle"
	MissionRecon               Mission = "recon"
	MissionSabotage            Mission = "sabotage"
	MissionAssassination       Mission = "assassination"
	MissionTheft               Mission = "theft"
	MissionCounterIntelligence Mission = "counter_intelligence"
)

// Spy economics.
const (
	SpyCost          = 150
	CivilWarCost     = 300
	SpyCooldownTurns = 2
	MaxSpyLevel      = 5
	MaxEspionage     = 100
)

// severity shifts detection by how loud the mission is.
var severity = map[Mission]int{
	MissionRecon:               0,
	MissionCounterIntelligence: -10,
	MissionTheft:               10,
	MissionSabotage:            15,
	MissionAssassination:       25,
}

// Valid reports whether m is a deployable mission.
func (m Mission) Valid() bool {
	_, ok := severity[m]
	return ok
}

// SpyAgent is a covert operative. Spies never fight and never count as troops.
type SpyAgent struct {
	ID          SpyID    `json:"id"`
	Owner       PlayerID `json:"owner"`
	Tile        TileID   `json:"tile"`
	City        CityID   `json:"city"`
	Mission     Mission  `json:"mission"`
	Target      TileID   `json:"target,omitempty"`
	TargetCity  CityID   `json:"targetCity,omitempty"`
	CreatedTurn int      `json:"createdTurn"`
	ArrivesTurn int      `json:"arrivesTurn,omitempty"`
	Level       int      `json:"level"`
	Experience  int      `json:"experience"`
	Detection   int      `json:"detection,omitempty"`
	Alive       bool     `json:"alive"`
	Stationed   bool     `json:"stationed,omitempty"`
	Intel       []TileID `json:"intel,omitempty"`
	IntelTurn   int      `json:"intelTurn,omitempty"`
}

// Spy returns the spy with the given id, or nil.
func (w *World) Spy(id SpyID) *SpyAgent {
	for _, s := range w.Spies {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SpiesOf returns p's living spies.
func (w *World) SpiesOf(p PlayerID) []*SpyAgent {
	var out []*SpyAgent
	for _, s := range w.Spies {
		if s.Owner == p && s.Alive {
			out = append(out, s)
		}
	}
	return out
}

// RecruitSpy trains a spy in a city with a spy academy.
func RecruitSpy(w *World, p PlayerID, city CityID) (*SpyAgent, error) {
	c := w.City(city)
	if c == nil {
		return nil, ErrUnknownCity
	}
	if c.Owner != p {
		return nil, ErrNotOwner
	}
	if c.BuildingLevel(SpyAcademy) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingBuilding, SpyAcademy)
	}
	pl := w.Player(p)
	if pl.Gold < SpyCost {
		return nil, fmt.Errorf("%w: spy costs %d", ErrInsufficientGold, SpyCost)
	}
	pl.Gold -= SpyCost
	s := &SpyAgent{
		ID:          SpyID(w.NextID()),
		Owner:       p,
		Tile:        c.Center,
		City:        c.ID,
		Mission:     MissionIdle,
		CreatedTurn: w.Room.Turn,
		Level:       1,
		Alive:       true,
	}
	w.Spies = append(w.Spies, s)
	return s, nil
}

// travelTurns is how long a spy needs to reach a target.
func travelTurns(dist int) int {
	switch {
	case dist <= 3:
		return 1
	case dist <= 7:
		return 2
	}
	return 3
}

// DeploySpy sends a spy toward a target tile on a mission.
func DeploySpy(w *World, p PlayerID, id SpyID, mission Mission, target TileID) error {
	s := w.Spy(id)
	if s == nil || !s.Alive || s.Owner != p {
		return ErrUnknownSpy
	}
	if w.Room.Turn-s.CreatedTurn < SpyCooldownTurns {
		return fmt.Errorf("%w: ready on turn %d", ErrSpyCooldown, s.CreatedTurn+SpyCooldownTurns)
	}
	if !mission.Valid() {
		return fmt.Errorf("%w: mission %q", ErrInvalidAction, mission)
	}
	dst, from := w.Tile(target), w.Tile(s.Tile)
	if dst == nil || from == nil {
		return ErrUnknownTile
	}
	if mission != MissionRecon && mission != MissionCounterIntelligence && dst.City == 0 {
		return fmt.Errorf("%w: %s needs a city", ErrInvalidTarget, mission)
	}
	s.Mission = mission
	s.Target = target
	s.TargetCity = dst.City
	s.Stationed = false
	s.ArrivesTurn = w.Room.Turn + travelTurns(HexDistance(from.Coord, dst.Coord))
	return nil
}

// DetectionChance is the percent chance that s is caught at its target.
func DetectionChance(w *World, s *SpyAgent, defender PlayerID) int {
	chance := 30 - 3*(s.Level-1) + severity[s.Mission]
	att, def := w.Player(s.Owner), w.Player(defender)
	if att != nil && def != nil {
		chance += max(0, (def.EspionagePower-att.EspionagePower)/5)
	}
	if c := w.City(s.TargetCity); c != nil && c.Owner == defender {
		chance += 5*c.BuildingLevel(Watchtower) + 3*c.BuildingLevel(SpyAcademy)
	}
	for _, o := range w.Spies {
		if o.Alive && o.Stationed && o.Mission == MissionCounterIntelligence &&
			o.Tile == s.Target && !w.Friendly(o.Owner, s.Owner) {
			chance += 10
		}
	}
	return clampInt(chance, 1, 95)
}

// resolveEspionage carries out missions of spies that have arrived.
func (run *phaseRun) resolveEspionage() {
	w := run.w
	for _, s := range w.Spies {
		if !s.Alive || s.Mission == MissionIdle || s.Stationed {
			continue
		}
		if w.Room.Turn < s.ArrivesTurn {
			continue
		}
		run.runMission(s)
	}
	live := w.Spies[:0]
	for _, s := range w.Spies {
		if !s.Alive && s.ArrivesTurn < w.Room.Turn-1 {
			continue
		}
		live = append(live, s)
	}
	w.Spies = live
}

func (run *phaseRun) runMission(s *SpyAgent) {
	w := run.w
	s.Tile = s.Target
	target := w.Tile(s.Target)
	if target == nil {
		s.Mission = MissionIdle
		return
	}
	defender := target.Owner
	if c := w.City(s.TargetCity); c != nil {
		defender = c.Owner
	}

	hostile := defender != 0 && !w.Friendly(s.Owner, defender)
	if hostile || s.Mission == MissionRecon {
		s.Detection = DetectionChance(w, s, defender)
		if hostile && run.rng.Intn(100) < s.Detection {
			s.Alive = false
			if r := w.Relation(s.Owner, defender); r != nil {
				r.Favorability = clampInt(r.Favorability-5, 0, 100)
			}
			run.privateNews(NewsEspionage, []PlayerID{s.Owner, defender},
				fmt.Sprintf("a %s spy of %s was caught and executed by %s", s.Mission, run.playerName(s.Owner), run.playerName(defender)),
				map[string]any{"spy": s.ID, "mission": s.Mission, "chance": s.Detection})
			return
		}
	}

	ok := run.missionEffect(s, target, defender, hostile)
	if !ok {
		s.Mission = MissionIdle
		return
	}
	s.Experience++
	s.Level = min(MaxSpyLevel, 1+s.Experience/3)
	if s.Mission != MissionCounterIntelligence {
		s.Mission = MissionIdle
	}
}

func (run *phaseRun) missionEffect(s *SpyAgent, target *Tile, defender PlayerID, hostile bool) bool {
	w := run.w
	owner := []PlayerID{s.Owner}
	city := w.City(s.TargetCity)
	switch s.Mission {
	case MissionRecon:
		s.Intel = s.Intel[:0]
		seen := 0
		for _, t := range w.TilesWithin(target.Coord, 2) {
			s.Intel = append(s.Intel, t.ID)
			t.reveal(s.Owner)
			if t.Owner != s.Owner {
				seen += t.Troops
			}
		}
		s.IntelTurn = w.Room.Turn
		run.allianceNews(NewsEspionage, s.Owner,
			fmt.Sprintf("recon around tile %d counted %s foreign troops", target.ID, humanize.Comma(int64(seen))),
			map[string]any{"spy": s.ID, "tiles": s.Intel, "troops": seen})
		return true

	case MissionSabotage:
		if !hostile || city == nil {
			return false
		}
		kinds := city.buildingKinds()
		if len(kinds) == 0 {
			city.addHappiness(-5)
		} else {
			b := city.Buildings[kinds[run.rng.Intn(len(kinds))]]
			b.HP = max(0, b.HP-50)
		}
		run.privateNews(NewsEspionage, []PlayerID{s.Owner, defender},
			fmt.Sprintf("saboteurs struck %s", city.Name), map[string]any{"city": city.ID})
		return true

	case MissionTheft:
		if !hostile {
			return false
		}
		victim, thief := w.Player(defender), w.Player(s.Owner)
		if g := min(50*s.Level, victim.Gold); g > 0 {
			victim.Gold -= g
			thief.Gold += g
			run.privateNews(NewsEspionage, []PlayerID{s.Owner, defender},
				fmt.Sprintf("%s gold vanished from the treasury of %s", humanize.Comma(int64(g)), run.playerName(defender)),
				map[string]any{"gold": g})
			return true
		}
		f := min(80*s.Level, victim.Food)
		if f <= 0 {
			return false
		}
		victim.Food -= f
		thief.Food += f
		run.privateNews(NewsEspionage, []PlayerID{s.Owner, defender},
			fmt.Sprintf("%s food was stolen from %s", humanize.Comma(int64(f)), run.playerName(defender)),
			map[string]any{"food": f})
		return true

	case MissionAssassination:
		if !hostile {
			return false
		}
		for _, o := range w.Spies {
			if o.Alive && o.ID != s.ID && o.Tile == s.Target && !w.Friendly(o.Owner, s.Owner) {
				o.Alive = false
				run.privateNews(NewsEspionage, []PlayerID{s.Owner, o.Owner},
					fmt.Sprintf("an agent of %s was assassinated", run.playerName(o.Owner)), map[string]any{"spy": o.ID})
				return true
			}
		}
		if city == nil {
			return false
		}
		city.addHappiness(-10)
		run.privateNews(NewsEspionage, []PlayerID{s.Owner, defender},
			fmt.Sprintf("an official of %s was assassinated", city.Name), map[string]any{"city": city.ID})
		return true

	case MissionCounterIntelligence:
		s.Stationed = true
		run.privateNews(NewsEspionage, owner,
			fmt.Sprintf("counter-intelligence agent stationed at tile %d", target.ID), map[string]any{"spy": s.ID})
		return true
	}
	return false
}

// growEspionagePower adds one point plus one per spy academy level.
func (run *phaseRun) growEspionagePower() {
	w := run.w
	for _, p := range w.ActivePlayers() {
		gain := 1
		for _, c := range w.CitiesOf(p.ID) {
			gain += c.BuildingLevel(SpyAcademy)
		}
		p.EspionagePower = min(MaxEspionage, p.EspionagePower+gain)
	}
}
