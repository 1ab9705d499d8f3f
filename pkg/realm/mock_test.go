package realm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm/realmmock"
)

type frontier struct {
	w              *realm.World
	attacker       realm.PlayerID
	defender       realm.PlayerID
	staging, field realm.TileID
}

func newFrontier(t *testing.T) frontier {
	t.Helper()
	w := realm.NewWorld(realm.Room{ID: "room-mock", Status: realm.RoomPlaying, Turn: 1, Seed: 11, Config: realm.DefaultRoomConfig()})
	for _, h := range (realm.Hex{}).WithinRadius(4) {
		w.AddTile(h, realm.Plains)
	}
	a := w.AddPlayer(realm.Player{Name: "Aria", Nation: "aria", Gold: 1000, Food: 1000})
	b := w.AddPlayer(realm.Player{Name: "Boros", Nation: "boros", Gold: 1000, Food: 1000})
	w.AddCity("Avel", realm.Capital, a.ID, w.TileAt(realm.Hex{Q: -3}).ID)
	w.AddCity("Brask", realm.Capital, b.ID, w.TileAt(realm.Hex{Q: 3}).ID)
	staging := w.TileAt(realm.Hex{Q: -1}).ID
	field := w.TileAt(realm.Hex{}).ID
	w.AddUnits(a.ID, staging, realm.Infantry, 200, 0)
	w.AddUnits(b.ID, field, realm.Infantry, 150, 0)
	return frontier{w: w, attacker: a.ID, defender: b.ID, staging: staging, field: field}
}

func playTurn(t *testing.T, e *realm.Engine, w *realm.World, planner realm.Planner, subs []realm.Submission) *realm.PhaseResult {
	t.Helper()
	ctx := context.Background()
	_, err := e.TurnStart(ctx, w, planner)
	require.NoError(t, err)
	_, err = e.Actions(ctx, w, subs)
	require.NoError(t, err)
	res, err := e.Resolution(ctx, w)
	require.NoError(t, err)
	return res
}

func TestJudgeReceivesBattleContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	judge := realmmock.NewMockStrategyJudge(ctrl)
	f := newFrontier(t)

	var seen []realm.JudgeRequest
	judge.EXPECT().
		Judge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req realm.JudgeRequest) (realm.JudgeVerdict, error) {
			seen = append(seen, req)
			return realm.JudgeVerdict{AttackerScore: 30, Narrative: "the flank collapsed"}, nil
		}).
		MinTimes(1)

	sub, err := realm.NewSubmission("atk-1", f.w.Room.ID, f.attacker, 1, realm.AttackAction{
		From:     f.staging,
		To:       f.field,
		Strategy: "swing the cavalry wide and hit the left flank",
	})
	require.NoError(t, err)

	res := playTurn(t, realm.NewEngine(realm.WithJudge(judge)), f.w, nil, []realm.Submission{sub})

	require.NotEmpty(t, res.Battles)
	require.NotEmpty(t, seen)
	assert.Equal(t, "swing the cavalry wide and hit the left flank", seen[0].AttackerStrategy)
	assert.Equal(t, realm.Plains, seen[0].Terrain)
	assert.False(t, seen[0].IsCity)
	assert.True(t, res.Battles[0].Result.JudgeUsed)
	assert.Equal(t, "the flank collapsed", res.Battles[0].Result.Narrative)
	assert.True(t, f.w.AtWar(f.attacker, f.defender))
}

func TestJudgeErrorFallsBackToDefaultScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	judge := realmmock.NewMockStrategyJudge(ctrl)
	judge.EXPECT().Judge(gomock.Any(), gomock.Any()).Return(realm.JudgeVerdict{}, errors.New("quota exceeded")).MinTimes(1)
	f := newFrontier(t)

	sub, err := realm.NewSubmission("atk-1", f.w.Room.ID, f.attacker, 1, realm.AttackAction{
		From: f.staging, To: f.field, Strategy: "advance in three columns behind shields",
	})
	require.NoError(t, err)

	res := playTurn(t, realm.NewEngine(realm.WithJudge(judge), realm.WithJudgeTimeout(time.Second)), f.w, nil, []realm.Submission{sub})

	require.NotEmpty(t, res.Battles)
	got := res.Battles[0].Result
	assert.False(t, got.JudgeUsed)
	// stats split 70 points by power; only the attacker wrote a strategy
	assert.InDelta(t, 70+float64(realm.StrategyScoreFallback), got.AttackerScore+got.DefenderScore, 1e-9)
}

func TestPlannerIsAskedOnlyForAIPlayers(t *testing.T) {
	ctrl := gomock.NewController(t)
	planner := realmmock.NewMockPlanner(ctrl)
	f := newFrontier(t)
	bot := f.w.AddPlayer(realm.Player{Name: "Bot", Nation: "bot", IsAI: true, Gold: 500})
	f.w.AddCity("Crown", realm.Town, bot.ID, f.w.TileAt(realm.Hex{Q: 0, R: 3}).ID)

	planner.EXPECT().PlanTurn(gomock.Any(), f.w, bot.ID).Return([]realm.Action{realm.TaxAction{Rate: 0.1}}).Times(1)

	res, err := realm.NewEngine().TurnStart(context.Background(), f.w, planner)
	require.NoError(t, err)
	require.Len(t, res.Planned, 1)
	assert.Equal(t, bot.ID, res.Planned[0].Player)
	assert.Equal(t, realm.ActionTax, res.Planned[0].Action.Type())
}

func TestNarratorFailureKeepsPlainText(t *testing.T) {
	ctrl := gomock.NewController(t)
	narrator := realmmock.NewMockNarrator(ctrl)
	narrator.EXPECT().Narrate(gomock.Any(), realm.NewsBattle, gomock.Any()).Return("", errors.New("offline")).AnyTimes()
	narrator.EXPECT().Narrate(gomock.Any(), gomock.Any(), gomock.Any()).Return("prose", nil).AnyTimes()
	f := newFrontier(t)

	sub, err := realm.NewSubmission("atk-1", f.w.Room.ID, f.attacker, 1, realm.AttackAction{From: f.staging, To: f.field})
	require.NoError(t, err)

	res := playTurn(t, realm.NewEngine(realm.WithNarrator(narrator)), f.w, nil, []realm.Submission{sub})

	battles := 0
	for _, n := range res.News {
		if n.Kind == realm.NewsBattle {
			battles++
			assert.NotEqual(t, "prose", n.Text)
			assert.NotEmpty(t, n.Text)
		}
	}
	assert.Positive(t, battles)
}
