package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomNotPlaying = errors.New("room is not playing")
	ErrNotInRoom      = errors.New("you are not in this room")
	ErrWrongTurn      = errors.New("action is not for the current turn")
	ErrInvalidAction  = errors.New("invalid action")
)

// ActionInput is the client payload for one action.
type ActionInput struct {
	Turn int              `json:"turn"`
	Type realm.ActionType `json:"actionType"`
	Data json.RawMessage  `json:"data"`
}

// ActionService validates submissions and queues them for the Actions phase.
type ActionService struct {
	worlds repository.WorldStore
	queue  repository.ActionQueue
	news   repository.NewsStore
}

// NewActionService creates an ActionService.
func NewActionService(worlds repository.WorldStore, queue repository.ActionQueue, news repository.NewsStore) *ActionService {
	return &ActionService{worlds: worlds, queue: queue, news: news}
}

// Submit checks the envelope against the room and queues it. Game rules
// are checked when the action is applied; only the shape is checked here.
func (s *ActionService) Submit(ctx context.Context, roomID string, player realm.PlayerID, in ActionInput) (realm.Submission, error) {
	w, err := s.worlds.LoadWorld(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return realm.Submission{}, ErrRoomNotFound
	}
	if err != nil {
		return realm.Submission{}, fmt.Errorf("load world: %w", err)
	}
	if w.Room.Status != realm.RoomPlaying {
		return realm.Submission{}, ErrRoomNotPlaying
	}
	p := w.Player(player)
	if p == nil || p.Eliminated {
		return realm.Submission{}, ErrNotInRoom
	}
	if in.Turn != w.Room.Turn {
		return realm.Submission{}, fmt.Errorf("%w: room is on turn %d", ErrWrongTurn, w.Room.Turn)
	}
	if !in.Type.Valid() {
		return realm.Submission{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, in.Type)
	}
	a, err := realm.DecodeAction(in.Type, in.Data)
	if err != nil {
		return realm.Submission{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	sub, err := realm.NewSubmission(uuid.NewString(), roomID, player, in.Turn, a)
	if err != nil {
		return realm.Submission{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	if err := s.queue.Submit(ctx, sub); err != nil {
		return realm.Submission{}, fmt.Errorf("queue action: %w", err)
	}
	return sub, nil
}

// Pending lists the player's own queued actions for the current turn.
func (s *ActionService) Pending(ctx context.Context, roomID string, player realm.PlayerID, turn int) ([]realm.Submission, error) {
	subs, err := s.queue.Pending(ctx, roomID, turn)
	if err != nil {
		return nil, err
	}
	var out []realm.Submission
	for _, sub := range subs {
		if sub.PlayerID == player && sub.Turn == turn {
			out = append(out, sub)
		}
	}
	return out, nil
}

// News returns what the player may see from sinceTurn on.
func (s *ActionService) News(ctx context.Context, roomID string, player realm.PlayerID, sinceTurn int) ([]realm.News, error) {
	news, err := s.news.NewsSince(ctx, roomID, sinceTurn, player)
	if err != nil {
		return nil, fmt.Errorf("news since %d: %w", sinceTurn, err)
	}
	return news, nil
}
