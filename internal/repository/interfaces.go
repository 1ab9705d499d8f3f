package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrVersionConflict = errors.New("version conflict")
)

// WorldStore persists rooms and their full world state.
type WorldStore interface {
	CreateRoom(ctx context.Context, w *realm.World) error
	LoadWorld(ctx context.Context, roomID string) (*realm.World, error)
	// SaveWorld replaces every entity record of the room in one transaction.
	SaveWorld(ctx context.Context, w *realm.World) error
	ListRooms(ctx context.Context, status realm.RoomStatus) ([]realm.Room, error)
	// ListDue returns playing rooms whose turn deadline is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]realm.Room, error)
}

// NewsStore keeps the news feed of each room.
type NewsStore interface {
	AppendNews(ctx context.Context, roomID string, news []realm.News) error
	// NewsSince returns items from turn sinceTurn on that player may read, oldest first.
	NewsSince(ctx context.Context, roomID string, sinceTurn int, player realm.PlayerID) ([]realm.News, error)
}

// ActionQueue buffers submitted actions until an Actions phase consumes them.
type ActionQueue interface {
	Submit(ctx context.Context, s realm.Submission) error
	Pending(ctx context.Context, roomID string, upToTurn int) ([]realm.Submission, error)
	MarkResolved(ctx context.Context, roomID string, ids []string) error
	// Purge drops resolved submissions of turns before the given turn.
	Purge(ctx context.Context, roomID string, beforeTurn int) error
}

// ActionLog archives consumed actions with their outcomes.
type ActionLog interface {
	Archive(ctx context.Context, roomID string, subs []realm.Submission, outcomes []realm.SubmissionOutcome) error
}

// MemoryRecord is an AI player's persisted memory with its version.
type MemoryRecord struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// AIMemoryStore holds versioned AI memory per (room, player).
type AIMemoryStore interface {
	// LoadMemory returns a zero record when none exists.
	LoadMemory(ctx context.Context, roomID string, player realm.PlayerID) (MemoryRecord, error)
	// SaveMemory writes data if the stored version still equals expected and
	// returns the new version; otherwise ErrVersionConflict.
	SaveMemory(ctx context.Context, roomID string, player realm.PlayerID, expected int64, data json.RawMessage) (int64, error)
	DeleteMemory(ctx context.Context, roomID string) error
}

// TurnClock owns turn timers and the cross-process resolution lock.
type TurnClock interface {
	SetTimer(ctx context.Context, roomID string, deadline time.Time) error
	ClearTimer(ctx context.Context, roomID string) error
	// AcquireTurnLock returns a release func when the lock was free.
	AcquireTurnLock(ctx context.Context, roomID string, ttl time.Duration) (release func(), ok bool, err error)
}
