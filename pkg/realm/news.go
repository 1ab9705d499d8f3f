package realm

import (
	"fmt"

	"github.com/google/uuid"
)

// NewsKind classifies a news item.
type NewsKind string

const (
	NewsMovement   NewsKind = "movement"
	NewsCapture    NewsKind = "capture"
	NewsBattle     NewsKind = "battle"
	NewsDiplomacy  NewsKind = "diplomacy"
	NewsTrade      NewsKind = "trade"
	NewsEspionage  NewsKind = "espionage"
	NewsEconomy    NewsKind = "economy"
	NewsUnrest     NewsKind = "unrest"
	NewsSecession  NewsKind = "secession"
	NewsVictory    NewsKind = "victory"
	NewsActionFail NewsKind = "action_failed"
)

// Scope limits who may read a news item.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeAlliance Scope = "alliance"
	ScopePrivate  Scope = "private"
)

// News is one event report produced by a phase.
type News struct {
	ID      string         `json:"id"`
	Turn    int            `json:"turn"`
	Phase   Phase          `json:"phase"`
	Kind    NewsKind       `json:"kind"`
	Scope   Scope          `json:"scope"`
	Players []PlayerID     `json:"players,omitempty"`
	Text    string         `json:"text"`
	Data    map[string]any `json:"data,omitempty"`
}

// VisibleTo reports whether p may read the item.
func (n News) VisibleTo(p PlayerID) bool {
	if n.Scope == ScopeGlobal {
		return true
	}
	for _, q := range n.Players {
		if q == p {
			return true
		}
	}
	return false
}

// newsID derives a stable id from the room, turn, phase and sequence so a
// re-run phase reproduces the same ids.
func newsID(room string, turn int, phase Phase, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "news:%s:%d:%s:%d", room, turn, phase, seq)).String()
}

func (run *phaseRun) addNews(kind NewsKind, scope Scope, players []PlayerID, text string, data map[string]any) {
	n := News{
		ID:      newsID(run.w.Room.ID, run.w.Room.Turn, run.phase, len(run.res.News)),
		Turn:    run.w.Room.Turn,
		Phase:   run.phase,
		Kind:    kind,
		Scope:   scope,
		Players: players,
		Text:    text,
		Data:    data,
	}
	if run.narrate != nil {
		if s := run.narrate(kind, n); s != "" {
			n.Text = s
		}
	}
	run.res.News = append(run.res.News, n)
}

func (run *phaseRun) globalNews(kind NewsKind, text string, data map[string]any) {
	run.addNews(kind, ScopeGlobal, nil, text, data)
}

func (run *phaseRun) privateNews(kind NewsKind, players []PlayerID, text string, data map[string]any) {
	run.addNews(kind, ScopePrivate, dedupe(players), text, data)
}

// allianceNews goes to p and every ally of p.
func (run *phaseRun) allianceNews(kind NewsKind, p PlayerID, text string, data map[string]any) {
	players := []PlayerID{p}
	for _, r := range run.w.Relations {
		if (r.A == p || r.B == p) && r.Status == Alliance {
			players = append(players, r.Other(p))
		}
	}
	run.addNews(kind, ScopeAlliance, dedupe(players), text, data)
}

func (run *phaseRun) playerName(p PlayerID) string {
	if pl := run.w.Player(p); pl != nil {
		return pl.Name
	}
	return fmt.Sprintf("player %d", p)
}

func dedupe(ps []PlayerID) []PlayerID {
	seen := make(map[PlayerID]bool, len(ps))
	out := ps[:0:0]
	for _, p := range ps {
		if p != 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
