package bot

import (
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Phase is the AI's long-term strategic phase.
type Phase string

const (
	PhaseExpansion     Phase = "expansion"
	PhaseConsolidation Phase = "consolidation"
	PhaseVictory       Phase = "victory"
)

// PhaseForTurn maps a turn number to its strategic phase.
func PhaseForTurn(turn int) Phase {
	switch {
	case turn <= 20:
		return PhaseExpansion
	case turn <= 50:
		return PhaseConsolidation
	default:
		return PhaseVictory
	}
}

// Personality weights each action kind. Values sit around 1.0.
type Personality struct {
	Expansion float64 `json:"expansion"`
	Economy   float64 `json:"economy"`
	Military  float64 `json:"military"`
	Diplomacy float64 `json:"diplomacy"`
	Espionage float64 `json:"espionage"`
	Risk      float64 `json:"risk"`
}

// rollPersonality draws a personality in [0.6, 1.4] per trait, skewed by
// difficulty: hard AIs lean military and risky, easy ones cautious.
func rollPersonality(w *realm.World, p *realm.Player) Personality {
	rng := personalityRand(w, p.ID)
	roll := func() float64 { return 0.6 + 0.8*rng.Float64() }
	pers := Personality{
		Expansion: roll(),
		Economy:   roll(),
		Military:  roll(),
		Diplomacy: roll(),
		Espionage: roll(),
		Risk:      roll(),
	}
	switch p.Difficulty {
	case realm.Hard:
		pers.Military += 0.2
		pers.Risk += 0.2
	case realm.Easy:
		pers.Military -= 0.2
		pers.Risk -= 0.3
		pers.Espionage -= 0.2
	}
	if p.Rebel {
		pers.Military += 0.3
		pers.Diplomacy -= 0.3
	}
	return pers
}

// Memory is what an AI player keeps between turns.
type Memory struct {
	Phase       Phase                      `json:"phase"`
	Personality Personality                `json:"personality"`
	Threatened  []realm.CityID             `json:"threatened,omitempty"`
	Grudges     map[realm.PlayerID]int     `json:"grudges,omitempty"`
	Postures    map[realm.PlayerID]Posture `json:"postures,omitempty"`
	LastTurn    int                        `json:"lastTurn"`
}

func newMemory(w *realm.World, p *realm.Player) *Memory {
	return &Memory{
		Phase:       PhaseForTurn(w.Room.Turn),
		Personality: rollPersonality(w, p),
		Grudges:     make(map[realm.PlayerID]int),
	}
}

func (m *Memory) threatened(c realm.CityID) bool {
	for _, id := range m.Threatened {
		if id == c {
			return true
		}
	}
	return false
}

const grudgeCap = 10

// updateGrudges grows grudges against enemies at war or pressing our
// borders and lets them fade once relations are neutral or better.
func (m *Memory) updateGrudges(w *realm.World, p realm.PlayerID) {
	if m.Grudges == nil {
		m.Grudges = make(map[realm.PlayerID]int)
	}
	for _, o := range w.ActivePlayers() {
		if o.ID == p {
			continue
		}
		g := m.Grudges[o.ID]
		switch {
		case w.AtWar(p, o.ID):
			g++
		case m.Postures[o.ID] == PostureAggressive:
			g++
		case !w.Stance(p, o.ID).Worse(realm.Neutral) && g > 0:
			g--
		}
		g = min(g, grudgeCap)
		if g == 0 {
			delete(m.Grudges, o.ID)
			continue
		}
		m.Grudges[o.ID] = g
	}
}
