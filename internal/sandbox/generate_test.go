package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	cfg := DefaultGenConfig()
	a, err := Generate("r1", "One", cfg)
	require.NoError(t, err)
	b, err := Generate("r1", "One", cfg)
	require.NoError(t, err)

	require.Len(t, b.Tiles, len(a.Tiles))
	for i := range a.Tiles {
		assert.Equal(t, a.Tiles[i].Terrain, b.Tiles[i].Terrain, "tile %d", i)
	}
	for i := range a.Cities {
		assert.Equal(t, a.Cities[i].Center, b.Cities[i].Center)
		assert.Equal(t, a.Cities[i].Specialty, b.Cities[i].Specialty)
	}
}

func TestGenerateSeatsEveryNation(t *testing.T) {
	cfg := DefaultGenConfig()
	w, err := Generate("r2", "Two", cfg)
	require.NoError(t, err)

	assert.Len(t, w.Tiles, len((realm.Hex{}).WithinRadius(cfg.Radius)))
	require.Len(t, w.Players, len(cfg.Nations))
	for _, p := range w.Players {
		cities := w.CitiesOf(p.ID)
		require.Len(t, cities, 1+cfg.CitiesPerNation, p.Name)
		capitals := 0
		for _, c := range cities {
			center := w.Tile(c.Center)
			assert.False(t, center.Terrain.IsWater(), "%s on water", c.Name)
			if c.Grade == realm.Capital {
				capitals++
			}
		}
		assert.Equal(t, 1, capitals, p.Name)
		assert.Equal(t, cfg.StartGold, p.Gold)
		assert.Greater(t, w.TotalTroops(p.ID), 0)
	}
	assert.True(t, w.Players[1].IsAI)
	assert.Equal(t, realm.Hard, w.Players[3].Difficulty)
}

func TestGenerateClustersDoNotOverlap(t *testing.T) {
	w, err := Generate("r3", "Three", DefaultGenConfig())
	require.NoError(t, err)

	seen := map[realm.TileID]realm.CityID{}
	for _, c := range w.Cities {
		for _, tile := range w.ClusterTiles(c) {
			if other, ok := seen[tile.ID]; ok {
				t.Fatalf("tile %d shared by cities %d and %d", tile.ID, other, c.ID)
			}
			seen[tile.ID] = c.ID
		}
	}
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Nations = cfg.Nations[:1]
	_, err := Generate("r", "x", cfg)
	assert.Error(t, err)

	cfg = DefaultGenConfig()
	cfg.Radius = 3
	_, err = Generate("r", "x", cfg)
	assert.ErrorIs(t, err, ErrTooManyNations)
}
