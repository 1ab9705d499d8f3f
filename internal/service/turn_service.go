package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Event names pushed to room subscribers.
const (
	EventPhaseResolved = "phase_resolved"
	EventRoomEnded     = "room_ended"
)

// TurnService runs the three phases of a turn against the stores: load
// the world, hand it to the engine, persist the result and publish news.
type TurnService struct {
	worlds  repository.WorldStore
	news    repository.NewsStore
	queue   repository.ActionQueue
	clock   repository.TurnClock
	archive repository.ActionLog     // optional
	memory  repository.AIMemoryStore // optional: cleared when a room ends

	engine      *realm.Engine
	planner     realm.Planner
	broadcaster Broadcaster

	now func() time.Time
}

// TurnDeps groups the collaborators of a TurnService.
type TurnDeps struct {
	Worlds      repository.WorldStore
	News        repository.NewsStore
	Queue       repository.ActionQueue
	Clock       repository.TurnClock
	Archive     repository.ActionLog
	Memory      repository.AIMemoryStore
	Engine      *realm.Engine
	Planner     realm.Planner
	Broadcaster Broadcaster
}

// NewTurnService creates a TurnService.
func NewTurnService(d TurnDeps) *TurnService {
	if d.Broadcaster == nil {
		d.Broadcaster = NoopBroadcaster{}
	}
	if d.Engine == nil {
		d.Engine = realm.NewEngine()
	}
	return &TurnService{
		worlds:      d.Worlds,
		news:        d.News,
		queue:       d.Queue,
		clock:       d.Clock,
		archive:     d.Archive,
		memory:      d.Memory,
		engine:      d.Engine,
		planner:     d.Planner,
		broadcaster: d.Broadcaster,
		now:         time.Now,
	}
}

func (s *TurnService) load(ctx context.Context, roomID string) (*realm.World, error) {
	w, err := s.worlds.LoadWorld(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}
	return w, nil
}

// RunTurnStart advances standing orders, lets the AI plan and queues the
// planned actions for the Actions phase.
func (s *TurnService) RunTurnStart(ctx context.Context, roomID string) (*realm.PhaseResult, error) {
	w, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.TurnStart(ctx, w, s.planner)
	if err != nil {
		return nil, err
	}
	if err := s.worlds.SaveWorld(ctx, w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}

	queued := 0
	for _, pa := range res.Planned {
		sub, err := realm.NewSubmission(uuid.NewString(), roomID, pa.Player, w.Room.Turn, pa.Action)
		if err != nil {
			log.Warn().Err(err).Str("roomId", roomID).Int64("playerId", int64(pa.Player)).Msg("Dropping unencodable AI action")
			continue
		}
		if err := s.queue.Submit(ctx, sub); err != nil {
			log.Warn().Err(err).Str("roomId", roomID).Str("actionType", string(sub.Type)).Msg("Failed to queue AI action")
			continue
		}
		queued++
	}
	log.Debug().Str("roomId", roomID).Int("turn", w.Room.Turn).Int("queued", queued).Msg("AI actions queued")

	return s.publish(ctx, w, res)
}

// RunActionsPhase applies every queued action of the current turn.
func (s *TurnService) RunActionsPhase(ctx context.Context, roomID string) (*realm.PhaseResult, error) {
	w, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	subs, err := s.queue.Pending(ctx, roomID, w.Room.Turn)
	if err != nil {
		return nil, fmt.Errorf("pending actions: %w", err)
	}
	res, err := s.engine.Actions(ctx, w, subs)
	if err != nil {
		return nil, err
	}
	if err := s.worlds.SaveWorld(ctx, w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	if err := s.queue.MarkResolved(ctx, roomID, ids); err != nil {
		return nil, fmt.Errorf("mark resolved: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, roomID, subs, res.Actions); err != nil {
			log.Warn().Err(err).Str("roomId", roomID).Msg("Failed to archive actions")
		}
	}
	return s.publish(ctx, w, res)
}

// RunResolutionPhase settles the turn, advances the counter and either
// arms the next deadline or closes the room.
func (s *TurnService) RunResolutionPhase(ctx context.Context, roomID string) (*realm.PhaseResult, error) {
	w, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	resolvedTurn := w.Room.Turn
	res, err := s.engine.Resolution(ctx, w)
	if err != nil {
		return nil, err
	}

	ended := w.Room.Status == realm.RoomEnded
	if ended {
		w.Room.Deadline = time.Time{}
	} else {
		w.Room.Deadline = s.now().Add(turnDuration(w)).UTC()
	}
	if err := s.worlds.SaveWorld(ctx, w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}
	if err := s.queue.Purge(ctx, roomID, resolvedTurn+1); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("Failed to purge resolved actions")
	}

	if ended {
		s.closeRoom(ctx, w)
	} else if err := s.clock.SetTimer(ctx, roomID, w.Room.Deadline); err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Failed to arm turn timer")
	}
	return s.publish(ctx, w, res)
}

// next returns the phase that follows last and its runner.
func (s *TurnService) next(last realm.Phase) (realm.Phase, func(context.Context, string) (*realm.PhaseResult, error)) {
	switch last {
	case realm.PhaseTurnStart:
		return realm.PhaseActions, s.RunActionsPhase
	case realm.PhaseActions:
		return realm.PhaseResolution, s.RunResolutionPhase
	}
	return realm.PhaseTurnStart, s.RunTurnStart
}

// RunTurn completes the current turn from wherever it stopped, so a turn
// interrupted after one saved phase resumes instead of repeating it.
func (s *TurnService) RunTurn(ctx context.Context, roomID string) ([]*realm.PhaseResult, error) {
	w, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if w.Room.Status != realm.RoomPlaying {
		return nil, ErrRoomNotPlaying
	}
	last := w.Room.Phase
	var out []*realm.PhaseResult
	for {
		phase, run := s.next(last)
		res, err := run(ctx, roomID)
		if err != nil {
			return out, fmt.Errorf("%s: %w", phase, err)
		}
		out = append(out, res)
		if phase == realm.PhaseResolution {
			return out, nil
		}
		last = phase
	}
}

func (s *TurnService) publish(ctx context.Context, w *realm.World, res *realm.PhaseResult) (*realm.PhaseResult, error) {
	if len(res.News) > 0 {
		if err := s.news.AppendNews(ctx, w.Room.ID, res.News); err != nil {
			return nil, fmt.Errorf("append news: %w", err)
		}
	}
	s.broadcaster.BroadcastRoomEvent(w.Room.ID, EventPhaseResolved, res)
	log.Info().Str("roomId", w.Room.ID).Int("turn", res.Turn).Str("phase", string(res.Phase)).
		Int("news", len(res.News)).Msg("Phase resolved")
	return res, nil
}

func (s *TurnService) closeRoom(ctx context.Context, w *realm.World) {
	if err := s.clock.ClearTimer(ctx, w.Room.ID); err != nil {
		log.Warn().Err(err).Str("roomId", w.Room.ID).Msg("Failed to clear timer")
	}
	if s.memory != nil {
		if err := s.memory.DeleteMemory(ctx, w.Room.ID); err != nil {
			log.Warn().Err(err).Str("roomId", w.Room.ID).Msg("Failed to delete AI memory")
		}
	}
	if f, ok := s.planner.(interface{ Forget(string) }); ok {
		f.Forget(w.Room.ID)
	}
	log.Info().Str("roomId", w.Room.ID).Interface("victory", w.Room.Victory).Msg("Room ended")
	s.broadcaster.BroadcastRoomEvent(w.Room.ID, EventRoomEnded, w.Room.Victory)
}

func turnDuration(w *realm.World) time.Duration {
	if d := w.Room.Config.TurnDuration; d > 0 {
		return d
	}
	return realm.DefaultRoomConfig().TurnDuration
}
