package realm

import (
	"fmt"
	"sort"
)

// VictoryCondition names how a room was won.
type VictoryCondition string

const (
	VictoryDomination   VictoryCondition = "domination"
	VictoryLastStanding VictoryCondition = "last_standing"
	VictoryScore        VictoryCondition = "score"
)

// DominationMinCities is the smallest map on which domination can be won.
const DominationMinCities = 3

// Victory ends a room.
type Victory struct {
	Winner    PlayerID         `json:"winner"`
	Condition VictoryCondition `json:"condition"`
	Scores    map[PlayerID]int `json:"scores"`
	Turn      int              `json:"turn"`
}

// Score is cities×100 + troops/10 + gold/100 + specialties×5.
func Score(w *World, p PlayerID) int {
	pl := w.Player(p)
	if pl == nil {
		return 0
	}
	specialties := 0
	for _, n := range w.SpecialtyStock(p) {
		specialties += n
	}
	return len(w.CitiesOf(p))*100 + w.TotalTroops(p)/10 + pl.Gold/100 + specialties*5
}

// checkVictory eliminates players with nothing left and ends the room
// when a victory condition holds.
func (run *phaseRun) checkVictory() {
	w := run.w
	for _, p := range w.ActivePlayers() {
		if len(w.CitiesOf(p.ID)) == 0 && w.TotalTroops(p.ID) == 0 {
			p.Eliminated = true
			run.globalNews(NewsVictory, fmt.Sprintf("%s has been eliminated", p.Name), map[string]any{"player": p.ID})
		}
	}
	if w.Room.Status != RoomPlaying {
		return
	}

	active := w.ActivePlayers()
	scores := make(map[PlayerID]int, len(active))
	for _, p := range active {
		scores[p.ID] = Score(w, p.ID)
	}

	cfg := w.Room.Config
	share := cfg.DominationShare
	if share <= 0 {
		share = DefaultRoomConfig().DominationShare
	}
	var v *Victory
	switch {
	case len(active) == 1:
		v = &Victory{Winner: active[0].ID, Condition: VictoryLastStanding}
	case len(active) == 0:
		return
	default:
		if total := len(w.Cities); total >= DominationMinCities {
			for _, p := range active {
				if float64(len(w.CitiesOf(p.ID)))/float64(total) >= share {
					v = &Victory{Winner: p.ID, Condition: VictoryDomination}
					break
				}
			}
		}
		if v == nil && cfg.MaxTurns > 0 && w.Room.Turn >= cfg.MaxTurns {
			v = &Victory{Winner: topScorer(active, scores), Condition: VictoryScore}
		}
	}
	if v == nil {
		return
	}
	v.Scores = scores
	v.Turn = w.Room.Turn
	w.Room.Victory = v
	w.Room.Status = RoomEnded
	run.res.Victory = v
	run.globalNews(NewsVictory, fmt.Sprintf("%s wins by %s", run.playerName(v.Winner), v.Condition),
		map[string]any{"winner": v.Winner, "condition": v.Condition, "scores": scores})
}

func topScorer(active []*Player, scores map[PlayerID]int) PlayerID {
	ids := make([]PlayerID, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids[0]
}
