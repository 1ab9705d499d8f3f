package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client for the live turn state of rooms: queued
// actions, turn timers, resolution locks and AI memory.
type Client struct {
	rdb *redis.Client
}

// Options tunes the connection pool. Zero values keep go-redis defaults.
type Options struct {
	PoolSize    int
	DialTimeout time.Duration
}

// Connect parses redisURL, applies opts and checks the server answers.
func Connect(ctx context.Context, redisURL string, opts Options) (*Client, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}
	if opts.DialTimeout > 0 {
		ro.DialTimeout = opts.DialTimeout
	}
	c := Wrap(redis.NewClient(ro))
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the go-redis client for pub/sub on keyspace events.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Key patterns for Redis room state.
func roomPrefix(roomID string) string        { return "room:" + roomID + ":" }
func actionsKey(roomID string) string        { return roomPrefix(roomID) + "actions" }
func timerKey(roomID string) string          { return roomPrefix(roomID) + "timer" }
func lockKey(roomID string) string           { return roomPrefix(roomID) + "lock" }
func memoryKey(roomID, player string) string { return roomPrefix(roomID) + "ai:" + player }
func memoryPattern(roomID string) string     { return roomPrefix(roomID) + "ai:*" }

// RoomFromTimerKey extracts the room id from an expired timer key.
func RoomFromTimerKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "room:")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ":timer")
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// DeleteRoomData removes every Redis key of a room (on room end).
func (c *Client) DeleteRoomData(ctx context.Context, roomID string) error {
	if err := c.DeleteMemory(ctx, roomID); err != nil {
		return err
	}
	return c.rdb.Del(ctx, actionsKey(roomID), timerKey(roomID), lockKey(roomID)).Err()
}
