package service

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository/redis"
)

const expiredPattern = "__keyevent@*__:expired"

// TimerListener listens for Redis keyspace notifications on expired timer
// keys and ticks the room. A poller over ListDue covers missed events.
type TimerListener struct {
	rdb       *goredis.Client
	scheduler *Scheduler
	interval  time.Duration
}

// NewTimerListener creates a TimerListener. rdb may be nil to run the
// poller alone.
func NewTimerListener(rdb *goredis.Client, scheduler *Scheduler, interval time.Duration) *TimerListener {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TimerListener{rdb: rdb, scheduler: scheduler, interval: interval}
}

// Start begins listening for expired key events and runs the poller
// until ctx is done.
func (t *TimerListener) Start(ctx context.Context) {
	if t.rdb != nil {
		go t.listenKeyspace(ctx)
	}
	t.pollDueRooms(ctx)
}

func (t *TimerListener) listenKeyspace(ctx context.Context) {
	if err := t.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Could not enable keyspace events, relying on poller")
	}
	pubsub := t.rdb.PSubscribe(ctx, expiredPattern)
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

func (t *TimerListener) pollDueRooms(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Msg("Room deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Room deadline poller stopped")
			return
		case <-ticker.C:
			if err := t.scheduler.TickDue(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to list due rooms")
			}
		}
	}
}

// handleExpiry ticks the room behind an expired timer key and ignores
// every other key.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	roomID, ok := redis.RoomFromTimerKey(key)
	if !ok {
		return
	}
	log.Info().Str("roomId", roomID).Msg("Timer expired, running turn")
	if _, err := t.scheduler.Tick(ctx, roomID); err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Turn failed after timer expiry")
	}
}
