package realm

import "testing"

func openFight(t *testing.T, w *World, run *phaseRun, tile *Tile, attacker PlayerID, atk int, defender PlayerID, def int) *Battlefield {
	t.Helper()
	w.AddUnits(attacker, tile.ID, Infantry, atk, 0)
	w.AddUnits(defender, tile.ID, Infantry, def, 0)
	return run.joinBattlefield(tile.ID, attacker, []PlayerID{defender}, "")
}

func TestBattlefieldResolvesWhenOneTeamRemains(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, War, 0)
	tile := at(t, w, 1, 0)
	run := newRun(w, nil)
	bf := openFight(t, w, run, tile, a.ID, 400, b.ID, 50)

	run.resolveBattlefields()

	if bf.State != BattleResolved {
		t.Fatalf("state = %s after %d rounds, want resolved", bf.State, bf.Rounds)
	}
	if bf.Winner != a.ID {
		t.Errorf("winner = %d, want %d", bf.Winner, a.ID)
	}
	if n := w.TroopsOf(b.ID, tile.ID).Total(); n != 0 {
		t.Errorf("defender still has %d troops", n)
	}
	if tile.Owner != a.ID {
		t.Errorf("tile owner = %d, want the winner", tile.Owner)
	}
	if len(run.res.Battles) == 0 {
		t.Error("expected battle outcomes in the phase result")
	}
}

func TestBattlefieldStaysOpenWhileTeamsRemain(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, War, 0)
	tile := at(t, w, 1, 0)
	run := newRun(w, nil)
	bf := openFight(t, w, run, tile, a.ID, 500, b.ID, 500)

	run.resolveBattlefields()

	if w.TroopsOf(a.ID, tile.ID).Total() == 0 || w.TroopsOf(b.ID, tile.ID).Total() == 0 {
		t.Skip("one side was wiped out; nothing to check")
	}
	if bf.State != BattleOpen {
		t.Errorf("state = %s with two teams standing", bf.State)
	}
	if bf.Rounds != MaxBattleRoundsPerTurn {
		t.Errorf("rounds = %d, want %d", bf.Rounds, MaxBattleRoundsPerTurn)
	}
}

func TestRetreatLeavesBattlefieldWithoutLosses(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, War, 0)
	tile := at(t, w, 1, 0)
	run := newRun(w, nil)
	bf := openFight(t, w, run, tile, a.ID, 200, b.ID, 50)

	if err := run.requestRetreat(b.ID, tile.ID); err != nil {
		t.Fatalf("retreat: %v", err)
	}
	run.resolveBattlefields()

	if got := w.TotalTroops(b.ID); got != 50 {
		t.Errorf("retreating side has %d troops, want 50", got)
	}
	if got := w.TroopsOf(b.ID, tile.ID).Total(); got != 0 {
		t.Errorf("%d retreating troops still on the tile", got)
	}
	if bf.State != BattleResolved || bf.Winner != a.ID {
		t.Errorf("battlefield %s won by %d", bf.State, bf.Winner)
	}
	if len(run.res.Battles) != 0 {
		t.Errorf("no fight should happen after a retreat, got %d", len(run.res.Battles))
	}
}

func TestRetreatRequiresParticipation(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	if err := newRun(w, nil).requestRetreat(a.ID, at(t, w, 1, 0).ID); err != ErrNotInBattle {
		t.Errorf("expected ErrNotInBattle, got %v", err)
	}
}

func TestTeamsGroupAllies(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	c := addNation(w, "Cyra")
	w.SetRelation(a.ID, b.ID, War, 0)
	w.SetRelation(c.ID, b.ID, War, 0)
	w.SetRelation(a.ID, c.ID, Alliance, 90)
	tile := at(t, w, 1, 0)
	run := newRun(w, nil)
	bf := openFight(t, w, run, tile, a.ID, 100, b.ID, 300)
	w.AddUnits(c.ID, tile.ID, Infantry, 150, 0)
	run.joinBattlefield(tile.ID, c.ID, []PlayerID{b.ID}, "")

	teams := run.teams(bf)
	if len(teams) != 2 {
		t.Fatalf("teams = %v, want 2", teams)
	}
	if len(teams[0]) != 1 || teams[0][0] != b.ID {
		t.Errorf("strongest team = %v, want Boros alone", teams[0])
	}
	if len(teams[1]) != 2 {
		t.Errorf("allied team = %v, want Aria and Cyra", teams[1])
	}
}

func TestDistributeLossesProRata(t *testing.T) {
	w := testWorld(t, 1)
	a := addNation(w, "Aria")
	c := addNation(w, "Cyra")
	tile := at(t, w, 0, 0)
	w.AddUnits(a.ID, tile.ID, Infantry, 60, 0)
	w.AddUnits(c.ID, tile.ID, Infantry, 40, 0)
	run := newRun(w, nil)
	team := []PlayerID{a.ID, c.ID}

	run.distributeLosses(tile.ID, team, Troops{Infantry: 100}, Troops{Infantry: 7})

	if got := w.TroopsOf(a.ID, tile.ID)[Infantry]; got != 55 {
		t.Errorf("Aria has %d, want 55 (4 pro rata + 1 remainder)", got)
	}
	if got := w.TroopsOf(c.ID, tile.ID)[Infantry]; got != 38 {
		t.Errorf("Cyra has %d, want 38", got)
	}
}
