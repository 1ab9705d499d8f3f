package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
)

var _ repository.TurnClock = (*Client)(nil)

// phaseGracePeriod is the extra time after the displayed deadline before
// the turn resolves, giving players a few seconds of leeway.
const phaseGracePeriod = 5 * time.Second

// SetTimer creates a timer key with a TTL. When the key expires,
// Redis keyspace notifications trigger turn resolution.
func (c *Client) SetTimer(ctx context.Context, roomID string, deadline time.Time) error {
	ttl := time.Until(deadline) + phaseGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(roomID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the timer for a room.
func (c *Client) ClearTimer(ctx context.Context, roomID string) error {
	return c.rdb.Del(ctx, timerKey(roomID)).Err()
}

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireTurnLock takes the room's resolution lock for ttl. ok is false when
// another process holds it.
func (c *Client) AcquireTurnLock(ctx context.Context, roomID string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(roomID), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire turn lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseLock.Run(ctx, c.rdb, []string{lockKey(roomID)}, token)
	}
	return release, true, nil
}
