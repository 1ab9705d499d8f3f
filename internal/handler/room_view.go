package handler

import (
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// playerSummary is what every seat may know about another player.
type playerSummary struct {
	ID         realm.PlayerID `json:"id"`
	Name       string         `json:"name"`
	Nation     string         `json:"nation"`
	IsAI       bool           `json:"isAi"`
	Eliminated bool           `json:"eliminated"`
}

// roomView is one player's fogged picture of a room.
type roomView struct {
	Room      realm.Room        `json:"room"`
	Players   []playerSummary   `json:"players"`
	Me        *realm.Player     `json:"me,omitempty"`
	Tiles     []*realm.Tile     `json:"tiles"`
	Cities    []*realm.City     `json:"cities"`
	Units     []*realm.Unit     `json:"units"`
	Relations []*realm.Relation `json:"relations"`
	Trades    []*realm.Trade    `json:"trades"`
	Spies     []*realm.SpyAgent `json:"spies"`
	AutoMoves []*realm.AutoMove `json:"autoMoves"`
}

// buildRoomView trims w to what player sees. Own tiles are always visible;
// discovered tiles keep their terrain and cities, units show only in sight.
func buildRoomView(w *realm.World, player realm.PlayerID) roomView {
	v := roomView{Room: w.Room, Me: w.Player(player)}
	for _, p := range w.Players {
		v.Players = append(v.Players, playerSummary{ID: p.ID, Name: p.Name, Nation: p.Nation, IsAI: p.IsAI, Eliminated: p.Eliminated})
	}

	seen := make(map[realm.TileID]bool)
	watched := make(map[realm.TileID]bool)
	for _, t := range w.Tiles {
		if t.Owner == player || t.VisibleTo(player) {
			seen[t.ID] = true
			v.Tiles = append(v.Tiles, t)
		}
		if t.Owner == player || t.InSight(player) {
			watched[t.ID] = true
		}
	}
	for _, c := range w.Cities {
		if c.Owner == player || seen[c.Center] {
			v.Cities = append(v.Cities, c)
		}
	}
	for _, u := range w.Units {
		if u.Owner == player || watched[u.Tile] {
			v.Units = append(v.Units, u)
		}
	}
	for _, r := range w.Relations {
		if r.A == player || r.B == player {
			v.Relations = append(v.Relations, r)
		}
	}
	for _, t := range w.Trades {
		if t.Proposer == player || t.Responder == player {
			v.Trades = append(v.Trades, t)
		}
	}
	for _, s := range w.Spies {
		if s.Owner == player {
			v.Spies = append(v.Spies, s)
		}
	}
	for _, m := range w.AutoMoves {
		if m.Owner == player {
			v.AutoMoves = append(v.AutoMoves, m)
		}
	}
	return v
}
