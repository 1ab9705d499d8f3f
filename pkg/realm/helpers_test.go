package realm

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
)

// testWorld builds a playing room on a plains hexagon of the given radius.
func testWorld(t *testing.T, radius int) *World {
	t.Helper()
	w := NewWorld(Room{ID: "room-test", Name: "test", Status: RoomPlaying, Turn: 1, Seed: 7, Config: DefaultRoomConfig()})
	for _, h := range (Hex{}).WithinRadius(radius) {
		w.AddTile(h, Plains)
	}
	return w
}

func addNation(w *World, name string) *Player {
	return w.AddPlayer(Player{Name: name, Nation: name, Gold: 1000, Food: 1000})
}

func at(t *testing.T, w *World, q, r int) *Tile {
	t.Helper()
	tile := w.TileAt(Hex{Q: q, R: r})
	if tile == nil {
		t.Fatalf("no tile at (%d,%d)", q, r)
	}
	return tile
}

// newRun returns a phase run that skips the phase-order guard.
func newRun(w *World, e *Engine) *phaseRun {
	if e == nil {
		e = NewEngine()
	}
	return &phaseRun{
		ctx:   context.Background(),
		e:     e,
		w:     w,
		phase: PhaseActions,
		rng:   rand.New(rand.NewSource(1)),
		res:   &PhaseResult{Deltas: make(map[PlayerID]Delta)},
		log:   zerolog.Nop(),
	}
}

func newsOfKind(news []News, kind NewsKind) []News {
	var out []News
	for _, n := range news {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// fakeJudge is a hand-written StrategyJudge.
type fakeJudge struct {
	verdict JudgeVerdict
	err     error
	block   bool
	panics  bool
	calls   int
}

func (f *fakeJudge) Judge(ctx context.Context, _ JudgeRequest) (JudgeVerdict, error) {
	f.calls++
	if f.panics {
		panic("judge exploded")
	}
	if f.block {
		<-ctx.Done()
		return JudgeVerdict{}, ctx.Err()
	}
	return f.verdict, f.err
}
