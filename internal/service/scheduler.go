package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/logger"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

const defaultLockTTL = 2 * time.Minute

// roomActor is the scheduler's record of one room. resolving guards
// against two ticks of the same room running inside this process.
type roomActor struct {
	id        string
	resolving atomic.Bool
	lastTurn  atomic.Int64
	ticks     atomic.Int64
}

// Scheduler drives rooms through their turns. Each room runs at most one
// turn at a time: in-process through its actor, across processes through
// the turn lock.
type Scheduler struct {
	turns   *TurnService
	worlds  repository.WorldStore
	clock   repository.TurnClock
	lockTTL time.Duration

	mu     sync.Mutex
	actors map[string]*roomActor
}

// NewScheduler creates a Scheduler.
func NewScheduler(turns *TurnService, worlds repository.WorldStore, clock repository.TurnClock) *Scheduler {
	return &Scheduler{
		turns:   turns,
		worlds:  worlds,
		clock:   clock,
		lockTTL: defaultLockTTL,
		actors:  make(map[string]*roomActor),
	}
}

func (s *Scheduler) actor(roomID string) *roomActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[roomID]
	if !ok {
		a = &roomActor{id: roomID}
		s.actors[roomID] = a
	}
	return a
}

// Tick runs the room's current turn to completion. It returns false
// without doing anything when the room is already resolving here or in
// another process.
func (s *Scheduler) Tick(ctx context.Context, roomID string) (bool, error) {
	a := s.actor(roomID)
	l := logger.ForRoom(roomID)
	if !a.resolving.CompareAndSwap(false, true) {
		l.Debug().Msg("Room already resolving, skipping tick")
		return false, nil
	}
	defer a.resolving.Store(false)

	release, ok, err := s.clock.AcquireTurnLock(ctx, roomID, s.lockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		l.Debug().Msg("Turn lock held elsewhere, skipping tick")
		return false, nil
	}
	defer release()

	results, err := s.turns.RunTurn(ctx, roomID)
	if err != nil {
		l.Error().Err(err).Int("phasesDone", len(results)).Msg("Turn failed, will retry next tick")
		return true, err
	}
	a.ticks.Add(1)
	if len(results) > 0 {
		a.lastTurn.Store(int64(results[len(results)-1].Turn))
	}
	return true, nil
}

// TickAll ticks rooms concurrently and waits for all of them.
func (s *Scheduler) TickAll(ctx context.Context, roomIDs []string) {
	var wg sync.WaitGroup
	for _, id := range roomIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.Tick(ctx, id); err != nil {
				log.Warn().Err(err).Str("roomId", id).Msg("Tick failed")
			}
		}(id)
	}
	wg.Wait()
}

// TickDue ticks every playing room whose deadline has passed.
func (s *Scheduler) TickDue(ctx context.Context) error {
	rooms, err := s.worlds.ListDue(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	log.Info().Int("count", len(ids)).Msg("Ticking due rooms")
	s.TickAll(ctx, ids)
	return nil
}

// RecoverTimers re-arms timers for playing rooms after a restart.
// Rooms already past their deadline are left to the poller.
func (s *Scheduler) RecoverTimers(ctx context.Context) error {
	rooms, err := s.worlds.ListRooms(ctx, realm.RoomPlaying)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, r := range rooms {
		if r.Deadline.IsZero() || !now.Before(r.Deadline) {
			continue
		}
		if err := s.clock.SetTimer(ctx, r.ID, r.Deadline); err != nil {
			log.Error().Err(err).Str("roomId", r.ID).Msg("Failed to restore timer")
		}
	}
	log.Info().Int("rooms", len(rooms)).Msg("Recovered room timers")
	return nil
}

// LastTurn reports the last turn this scheduler completed for a room.
func (s *Scheduler) LastTurn(roomID string) int {
	return int(s.actor(roomID).lastTurn.Load())
}
