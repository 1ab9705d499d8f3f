package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/sandbox"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var ErrRoomNotInLobby = errors.New("room is not in the lobby")

// RoomService handles the room lifecycle: lobby, playing, ended.
type RoomService struct {
	worlds       repository.WorldStore
	clock        repository.TurnClock
	turnDuration time.Duration
	now          func() time.Time
}

// NewRoomService creates a RoomService. turnDuration is the default turn
// length for rooms created without one.
func NewRoomService(worlds repository.WorldStore, clock repository.TurnClock, turnDuration time.Duration) *RoomService {
	return &RoomService{worlds: worlds, clock: clock, turnDuration: turnDuration, now: time.Now}
}

// CreateRoom generates a world for cfg and stores it in the lobby.
func (s *RoomService) CreateRoom(ctx context.Context, name string, cfg sandbox.GenConfig) (*realm.World, error) {
	w, err := sandbox.Generate(uuid.NewString(), name, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	w.Room.Status = realm.RoomLobby
	if s.turnDuration > 0 {
		w.Room.Config.TurnDuration = s.turnDuration
	}
	if err := s.worlds.CreateRoom(ctx, w); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("roomId", w.Room.ID).Str("name", name).Int("players", len(w.Players)).Msg("Room created")
	return w, nil
}

// StartRoom moves a lobby room to playing and arms the first deadline.
func (s *RoomService) StartRoom(ctx context.Context, roomID string) (*realm.World, error) {
	w, err := s.worlds.LoadWorld(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}
	if w.Room.Status != realm.RoomLobby {
		return nil, ErrRoomNotInLobby
	}
	w.Room.Status = realm.RoomPlaying
	w.Room.Deadline = s.now().Add(turnDuration(w)).UTC()
	if err := s.worlds.SaveWorld(ctx, w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}
	if err := s.clock.SetTimer(ctx, roomID, w.Room.Deadline); err != nil {
		return nil, fmt.Errorf("set timer: %w", err)
	}
	log.Info().Str("roomId", roomID).Time("deadline", w.Room.Deadline).Msg("Room started")
	return w, nil
}

// GetRoom loads a room's world.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*realm.World, error) {
	w, err := s.worlds.LoadWorld(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return w, err
}

// ListRooms returns room headers, filtered by status when one is given.
func (s *RoomService) ListRooms(ctx context.Context, status realm.RoomStatus) ([]realm.Room, error) {
	return s.worlds.ListRooms(ctx, status)
}

// SeatOf returns the player a user holds in a room.
func SeatOf(w *realm.World, userID string) (*realm.Player, error) {
	for _, p := range w.Players {
		if p.UserID != "" && p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrNotInRoom
}
