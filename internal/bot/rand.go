package bot

import (
	"math/rand"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// planRand is the random source for one player's plan in the current turn.
// The same room seed, turn and player always give the same sequence.
func planRand(w *realm.World, p realm.PlayerID) *rand.Rand {
	return rand.New(rand.NewSource(w.Room.Seed*1_000_003 + int64(w.Room.Turn)*7919 + int64(p)))
}

// personalityRand seeds the one-time personality roll of a player.
func personalityRand(w *realm.World, p realm.PlayerID) *rand.Rand {
	return rand.New(rand.NewSource(w.Room.Seed ^ int64(p)*104_729))
}
