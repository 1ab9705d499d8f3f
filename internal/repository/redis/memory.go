package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var _ repository.AIMemoryStore = (*Client)(nil)

func playerField(p realm.PlayerID) string { return strconv.FormatInt(int64(p), 10) }

// LoadMemory returns the stored memory, or a zero record when the player
// has none yet.
func (c *Client) LoadMemory(ctx context.Context, roomID string, player realm.PlayerID) (repository.MemoryRecord, error) {
	return loadMemory(ctx, c.rdb, memoryKey(roomID, playerField(player)))
}

func loadMemory(ctx context.Context, cmd redis.Cmdable, key string) (repository.MemoryRecord, error) {
	var rec repository.MemoryRecord
	data, err := cmd.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("get ai memory: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode ai memory: %w", err)
	}
	return rec, nil
}

// SaveMemory is an optimistic write: it succeeds only while the stored
// version equals expected.
func (c *Client) SaveMemory(ctx context.Context, roomID string, player realm.PlayerID, expected int64, data json.RawMessage) (int64, error) {
	key := memoryKey(roomID, playerField(player))
	next := expected + 1
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := loadMemory(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur.Version != expected {
			return repository.ErrVersionConflict
		}
		payload, err := json.Marshal(repository.MemoryRecord{Version: next, Data: data})
		if err != nil {
			return fmt.Errorf("encode ai memory: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, repository.ErrVersionConflict
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// DeleteMemory drops the memory of every AI player in the room.
func (c *Client) DeleteMemory(ctx context.Context, roomID string) error {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, memoryPattern(roomID), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan ai memory: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
