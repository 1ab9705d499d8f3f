package realm

import (
	"errors"
	"testing"
)

func spyWorld(t *testing.T) (*World, *Player, *Player, *City, *City) {
	t.Helper()
	w := testWorld(t, 4)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, Hostile, 20)
	home := w.AddCity("Avel", Major, a.ID, at(t, w, -3, 0).ID)
	home.Buildings[SpyAcademy] = &Building{Kind: SpyAcademy, Level: 1, HP: buildingMaxHP}
	target := w.AddCity("Brask", NormalCity, b.ID, at(t, w, 3, 0).ID)
	return w, a, b, home, target
}

func TestRecruitSpyNeedsAcademyAndGold(t *testing.T) {
	w, a, b, home, target := spyWorld(t)
	if _, err := RecruitSpy(w, b.ID, target.ID); !errors.Is(err, ErrMissingBuilding) {
		t.Errorf("expected ErrMissingBuilding, got %v", err)
	}
	s, err := RecruitSpy(w, a.ID, home.ID)
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	if a.Gold != 1000-SpyCost || !s.Alive || s.Tile != home.Center {
		t.Errorf("spy %+v, gold %d", s, a.Gold)
	}
	if w.TotalTroops(a.ID) != 0 {
		t.Error("spies must not count as troops")
	}
	a.Gold = 10
	if _, err := RecruitSpy(w, a.ID, home.ID); !errors.Is(err, ErrInsufficientGold) {
		t.Errorf("expected ErrInsufficientGold, got %v", err)
	}
}

func TestDeploySpyCooldownAndTravel(t *testing.T) {
	w, a, _, home, target := spyWorld(t)
	s, err := RecruitSpy(w, a.ID, home.ID)
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	if err := DeploySpy(w, a.ID, s.ID, MissionTheft, target.Center); !errors.Is(err, ErrSpyCooldown) {
		t.Fatalf("expected ErrSpyCooldown, got %v", err)
	}
	w.Room.Turn += SpyCooldownTurns
	if err := DeploySpy(w, a.ID, s.ID, MissionTheft, target.Center); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if got := s.ArrivesTurn - w.Room.Turn; got != 2 {
		t.Errorf("travel = %d turns over 6 hexes, want 2", got)
	}
}

func TestTravelTurns(t *testing.T) {
	for dist, want := range map[int]int{0: 1, 3: 1, 4: 2, 7: 2, 8: 3, 20: 3} {
		if got := travelTurns(dist); got != want {
			t.Errorf("travelTurns(%d) = %d, want %d", dist, got, want)
		}
	}
}

func TestDetectionChanceClamped(t *testing.T) {
	w, a, b, _, target := spyWorld(t)
	s := &SpyAgent{ID: 999, Owner: a.ID, Level: 1, Alive: true, Mission: MissionAssassination, Target: target.Center, TargetCity: target.ID}

	b.EspionagePower, a.EspionagePower = 100, 0
	target.Buildings[Watchtower] = &Building{Kind: Watchtower, Level: 5, HP: buildingMaxHP}
	target.Buildings[SpyAcademy] = &Building{Kind: SpyAcademy, Level: 5, HP: buildingMaxHP}
	for i := 0; i < 4; i++ {
		w.Spies = append(w.Spies, &SpyAgent{ID: SpyID(1000 + i), Owner: b.ID, Tile: target.Center, Alive: true, Stationed: true, Mission: MissionCounterIntelligence})
	}
	if got := DetectionChance(w, s, b.ID); got != 95 {
		t.Errorf("maxed detection = %d, want 95", got)
	}

	w.Spies = nil
	target.Buildings = map[BuildingKind]*Building{}
	b.EspionagePower = 0
	s.Level, s.Mission = MaxSpyLevel, MissionCounterIntelligence
	if got := DetectionChance(w, s, b.ID); got != 8 {
		t.Errorf("quiet veteran detection = %d, want 8", got)
	}
	s.Mission = MissionRecon
	s.Level = 30
	if got := DetectionChance(w, s, b.ID); got != 1 {
		t.Errorf("floor = %d, want 1", got)
	}
}

func TestDetectionChanceAdditiveTerms(t *testing.T) {
	w, a, b, _, target := spyWorld(t)
	s := &SpyAgent{Owner: a.ID, Level: 2, Alive: true, Mission: MissionSabotage, Target: target.Center, TargetCity: target.ID}
	b.EspionagePower, a.EspionagePower = 30, 10
	target.Buildings[Watchtower] = &Building{Kind: Watchtower, Level: 2, HP: buildingMaxHP}
	// 30 - 3 + 15 + 4 + 10
	if got := DetectionChance(w, s, b.ID); got != 56 {
		t.Errorf("detection = %d, want 56", got)
	}
}

func TestMissionsResolveOnArrival(t *testing.T) {
	w, a, b, home, target := spyWorld(t)
	s, err := RecruitSpy(w, a.ID, home.ID)
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	w.Room.Turn += SpyCooldownTurns
	if err := DeploySpy(w, a.ID, s.ID, MissionTheft, target.Center); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	run := newRun(w, nil)
	run.resolveEspionage()
	if s.Tile == target.Center {
		t.Fatal("spy arrived before its travel time")
	}

	w.Room.Turn = s.ArrivesTurn
	goldA, goldB := a.Gold, b.Gold
	run = newRun(w, nil)
	run.resolveEspionage()

	if s.Alive {
		if a.Gold != goldA+50 || b.Gold != goldB-50 {
			t.Errorf("theft moved %d gold, want 50", a.Gold-goldA)
		}
		if s.Mission != MissionIdle || s.Experience != 1 {
			t.Errorf("after success mission=%s exp=%d", s.Mission, s.Experience)
		}
	} else if a.Gold != goldA || b.Gold != goldB {
		t.Error("a caught spy must not steal")
	}
	if len(newsOfKind(run.res.News, NewsEspionage)) == 0 {
		t.Error("expected espionage news")
	}
}

func TestCounterIntelligenceStaysStationed(t *testing.T) {
	w, a, _, home, _ := spyWorld(t)
	s, err := RecruitSpy(w, a.ID, home.ID)
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	w.Room.Turn += SpyCooldownTurns
	if err := DeploySpy(w, a.ID, s.ID, MissionCounterIntelligence, home.Center); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	w.Room.Turn = s.ArrivesTurn
	newRun(w, nil).resolveEspionage()
	if !s.Alive || !s.Stationed || s.Mission != MissionCounterIntelligence {
		t.Errorf("spy = %+v, want stationed on counter-intelligence", s)
	}
}

func TestEspionagePowerGrowth(t *testing.T) {
	w, a, b, home, _ := spyWorld(t)
	home.Buildings[SpyAcademy].Level = 3
	b.EspionagePower = MaxEspionage
	run := newRun(w, nil)
	run.growEspionagePower()
	if a.EspionagePower != 4 {
		t.Errorf("power = %d, want 1 base + 3 academy", a.EspionagePower)
	}
	if b.EspionagePower != MaxEspionage {
		t.Errorf("power = %d, want capped %d", b.EspionagePower, MaxEspionage)
	}
}
