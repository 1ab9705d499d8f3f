// Package bot plans turns for AI players: it tracks a strategic phase and
// a personality per player, scores candidate actions and commits the best
// few within a per-difficulty budget.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/logger"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// MaxActions is how many scored actions a difficulty commits per turn.
func MaxActions(d realm.Difficulty) int {
	switch d {
	case realm.Easy:
		return 1
	case realm.Hard:
		return 4
	}
	return 3
}

type cachedMemory struct {
	mem     *Memory
	version int64
}

// Planner implements realm.Planner. Memory lives in store when one is
// given and in process otherwise.
type Planner struct {
	store repository.AIMemoryStore

	mu    sync.Mutex
	cache map[string]cachedMemory

	log zerolog.Logger
}

// NewPlanner creates a planner. store may be nil.
func NewPlanner(store repository.AIMemoryStore) *Planner {
	return &Planner{
		store: store,
		cache: make(map[string]cachedMemory),
		log:   logger.Get().With().Str("component", "bot").Logger(),
	}
}

var _ realm.Planner = (*Planner)(nil)

// PlanTurn answers pending proposals, trades and blocked orders for p,
// then returns its chosen actions for the Actions phase.
func (pl *Planner) PlanTurn(ctx context.Context, w *realm.World, p realm.PlayerID) []realm.Action {
	player := w.Player(p)
	if player == nil || player.Eliminated {
		return nil
	}
	log := pl.log.With().Str("room", w.Room.ID).Int64("player", int64(p)).Int("turn", w.Room.Turn).Logger()

	mem, version := pl.load(ctx, w, player)
	mem.Phase = PhaseForTurn(w.Room.Turn)
	mem.Postures = ClassifyPostures(w, p)
	mem.Threatened = ThreatenedCities(w, p)
	mem.updateGrudges(w, p)
	mem.LastTurn = w.Room.Turn

	tp := &turnPlan{w: w, p: player, mem: mem, rng: planRand(w, p), log: log}
	tp.answerProposals()
	tp.answerTrades()
	actions := tp.blockedOrders()

	cs := tp.candidates()
	tp.score(cs)
	for _, c := range tp.pick(cs, MaxActions(player.Difficulty)) {
		if c.now != nil {
			if err := c.now(); err != nil {
				log.Debug().Err(err).Str("kind", string(c.kind)).Msg("immediate deal failed")
			}
			continue
		}
		actions = append(actions, c.action)
	}

	pl.save(ctx, w.Room.ID, p, mem, version)
	log.Debug().
		Str("phase", string(mem.Phase)).
		Int("candidates", len(cs)).
		Int("actions", len(actions)).
		Msg("turn planned")
	return actions
}

// Memory returns the cached memory of a player, if any.
func (pl *Planner) Memory(roomID string, p realm.PlayerID) (*Memory, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	c, ok := pl.cache[cacheKey(roomID, p)]
	return c.mem, ok
}

// Forget drops every cached memory of a room.
func (pl *Planner) Forget(roomID string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	prefix := roomID + "/"
	for k := range pl.cache {
		if strings.HasPrefix(k, prefix) {
			delete(pl.cache, k)
		}
	}
}

func cacheKey(roomID string, p realm.PlayerID) string {
	return roomID + "/" + strconv.FormatInt(int64(p), 10)
}

func (pl *Planner) load(ctx context.Context, w *realm.World, p *realm.Player) (*Memory, int64) {
	key := cacheKey(w.Room.ID, p.ID)
	if pl.store != nil {
		rec, err := pl.store.LoadMemory(ctx, w.Room.ID, p.ID)
		if err == nil && rec.Version > 0 {
			var mem Memory
			if err := json.Unmarshal(rec.Data, &mem); err == nil {
				return &mem, rec.Version
			}
			pl.log.Warn().Str("room", w.Room.ID).Int64("player", int64(p.ID)).Msg("discarding unreadable ai memory")
		} else if err == nil {
			return newMemory(w, p), 0
		} else {
			pl.log.Warn().Err(err).Str("room", w.Room.ID).Msg("load ai memory, using cache")
		}
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()
	if c, ok := pl.cache[key]; ok {
		return c.mem, c.version
	}
	return newMemory(w, p), 0
}

func (pl *Planner) save(ctx context.Context, roomID string, p realm.PlayerID, mem *Memory, version int64) {
	pl.mu.Lock()
	pl.cache[cacheKey(roomID, p)] = cachedMemory{mem: mem, version: version}
	pl.mu.Unlock()
	if pl.store == nil {
		return
	}

	data, err := json.Marshal(mem)
	if err != nil {
		pl.log.Error().Err(err).Msg("encode ai memory")
		return
	}
	next, err := pl.store.SaveMemory(ctx, roomID, p, version, data)
	if errors.Is(err, repository.ErrVersionConflict) {
		// Someone else wrote first; overwrite on top of their version.
		rec, lerr := pl.store.LoadMemory(ctx, roomID, p)
		if lerr != nil {
			pl.log.Warn().Err(lerr).Str("room", roomID).Msg("reload ai memory")
			return
		}
		next, err = pl.store.SaveMemory(ctx, roomID, p, rec.Version, data)
	}
	if err != nil {
		pl.log.Warn().Err(err).Str("room", roomID).Int64("player", int64(p)).Msg("save ai memory")
		return
	}
	pl.mu.Lock()
	pl.cache[cacheKey(roomID, p)] = cachedMemory{mem: mem, version: next}
	pl.mu.Unlock()
}
