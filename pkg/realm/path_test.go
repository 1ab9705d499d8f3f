package realm

import "testing"

// --- Hex math ---

func TestHexDistance(t *testing.T) {
	cases := []struct {
		a, b Hex
		want int
	}{
		{Hex{0, 0}, Hex{0, 0}, 0},
		{Hex{0, 0}, Hex{3, 0}, 3},
		{Hex{0, 0}, Hex{2, -1}, 2},
		{Hex{-2, 1}, Hex{1, 1}, 3},
		{Hex{1, -3}, Hex{-1, 3}, 6},
	}
	for _, tc := range cases {
		if got := HexDistance(tc.a, tc.b); got != tc.want {
			t.Errorf("HexDistance(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRingAndRadiusSizes(t *testing.T) {
	origin := Hex{}
	for r := 1; r <= 4; r++ {
		if got := len(origin.Ring(r)); got != 6*r {
			t.Errorf("ring %d has %d hexes, want %d", r, got, 6*r)
		}
		for _, h := range origin.Ring(r) {
			if HexDistance(origin, h) != r {
				t.Errorf("ring %d contains %v at distance %d", r, h, HexDistance(origin, h))
			}
		}
	}
	if got := len(origin.WithinRadius(2)); got != 19 {
		t.Errorf("radius 2 has %d hexes, want 19", got)
	}
}

// --- Pathfinding ---

func TestFindPathStraightLine(t *testing.T) {
	w := testWorld(t, 3)
	a := addNation(w, "Aria")
	from, to := at(t, w, 0, 0), at(t, w, 3, 0)

	path := FindPath(w, a.ID, from.ID, to.ID, []UnitType{Infantry})
	if len(path) != 4 {
		t.Fatalf("expected 4 tiles, got %v", path)
	}
	if path[0] != from.ID || path[len(path)-1] != to.ID {
		t.Errorf("path endpoints = %d..%d, want %d..%d", path[0], path[len(path)-1], from.ID, to.ID)
	}
	if c := PathCost(w, path); c != 3 {
		t.Errorf("cost = %v, want 3", c)
	}
}

func TestFindPathRoutesAroundMountains(t *testing.T) {
	w := testWorld(t, 3)
	a := addNation(w, "Aria")
	at(t, w, 1, 0).Terrain = Mountain
	at(t, w, 2, 0).Terrain = Mountain

	path := FindPath(w, a.ID, at(t, w, 0, 0).ID, at(t, w, 3, 0).ID, []UnitType{Infantry})
	if path == nil {
		t.Fatal("expected a path")
	}
	if c := PathCost(w, path); c != 4 {
		t.Errorf("cost = %v, want 4 (detour beats the 5-point pass)", c)
	}
	for _, id := range path {
		if w.Tile(id).Terrain == Mountain {
			t.Errorf("path crosses mountain tile %d", id)
		}
	}
}

func TestFindPathSameTile(t *testing.T) {
	w := testWorld(t, 1)
	a := addNation(w, "Aria")
	origin := at(t, w, 0, 0)
	path := FindPath(w, a.ID, origin.ID, origin.ID, []UnitType{Infantry})
	if len(path) != 1 || path[0] != origin.ID {
		t.Errorf("expected [%d], got %v", origin.ID, path)
	}
}

func TestFindPathUnreachableTerrain(t *testing.T) {
	w := testWorld(t, 3)
	a := addNation(w, "Aria")
	sea := at(t, w, 2, 0)
	sea.Terrain = Sea

	if p := FindPath(w, a.ID, at(t, w, 0, 0).ID, sea.ID, []UnitType{Infantry}); p != nil {
		t.Errorf("infantry should not reach sea, got %v", p)
	}
	if p := FindPath(w, a.ID, at(t, w, 0, 0).ID, sea.ID, []UnitType{Infantry, Cavalry}); p != nil {
		t.Errorf("mixed land group should not reach sea, got %v", p)
	}
}

func TestFindPathRespectsTerritory(t *testing.T) {
	w := testWorld(t, 3)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	target := at(t, w, 2, 0)
	target.Owner = b.ID
	from := at(t, w, 0, 0).ID

	if p := FindPath(w, a.ID, from, target.ID, []UnitType{Infantry}); p != nil {
		t.Errorf("neutral territory should be closed, got %v", p)
	}
	if p := FindAttackPath(w, a.ID, from, target.ID, []UnitType{Infantry}); p == nil {
		t.Error("attack mode should admit a hostile final tile")
	}

	w.SetRelation(a.ID, b.ID, War, 0)
	if p := FindPath(w, a.ID, from, target.ID, []UnitType{Infantry}); p == nil {
		t.Error("land of an enemy at war should be open")
	}

	w.SetRelation(a.ID, b.ID, Alliance, 80)
	if p := FindPath(w, a.ID, from, target.ID, []UnitType{Infantry}); p == nil {
		t.Error("allied land should be open")
	}
}

func TestFindPathAvoidsForeignStacksExceptAtTarget(t *testing.T) {
	w := testWorld(t, 3)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, War, 0)
	w.AddUnits(b.ID, at(t, w, 1, 0).ID, Infantry, 10, 0)

	path := FindPath(w, a.ID, at(t, w, 0, 0).ID, at(t, w, 2, 0).ID, []UnitType{Infantry})
	if path == nil {
		t.Fatal("expected a path around the stack")
	}
	for _, id := range path {
		if id == at(t, w, 1, 0).ID {
			t.Error("path steps through an enemy stack")
		}
	}

	direct := FindPath(w, a.ID, at(t, w, 0, 0).ID, at(t, w, 1, 0).ID, []UnitType{Infantry})
	if len(direct) != 2 {
		t.Errorf("an enemy stack may be the final target, got %v", direct)
	}
}

func TestNearestSafeTile(t *testing.T) {
	w := testWorld(t, 2)
	a := addNation(w, "Aria")
	b := addNation(w, "Boros")
	w.SetRelation(a.ID, b.ID, War, 0)
	origin := at(t, w, 0, 0)
	for _, n := range w.NeighborTiles(origin) {
		n.Owner = b.ID
	}

	dst := NearestSafeTile(w, a.ID, origin.ID, []UnitType{Infantry})
	if dst == 0 {
		t.Fatal("expected a safe tile in the second ring")
	}
	if d := HexDistance(origin.Coord, w.Tile(dst).Coord); d != 2 {
		t.Errorf("safe tile at distance %d, want 2", d)
	}
	if w.Tile(dst).Owner == b.ID {
		t.Error("safe tile is owned by the enemy")
	}
}
