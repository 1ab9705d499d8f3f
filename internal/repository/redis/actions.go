package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var _ repository.ActionQueue = (*Client)(nil)

// Submit stores a submission in the room's action hash. An id that is
// already queued is rejected with ErrDuplicate.
func (c *Client) Submit(ctx context.Context, s realm.Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	added, err := c.rdb.HSetNX(ctx, actionsKey(s.RoomID), s.ID, data).Result()
	if err != nil {
		return fmt.Errorf("submit action: %w", err)
	}
	if !added {
		return fmt.Errorf("action %s: %w", s.ID, repository.ErrDuplicate)
	}
	return nil
}

// Pending returns unresolved submissions for turns up to upToTurn, in
// submission order.
func (c *Client) Pending(ctx context.Context, roomID string, upToTurn int) ([]realm.Submission, error) {
	all, err := c.queued(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if !s.Resolved && s.Turn <= upToTurn {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkResolved flags the given submissions so later phases skip them.
func (c *Client) MarkResolved(ctx context.Context, roomID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	key := actionsKey(roomID)
	vals, err := c.rdb.HMGet(ctx, key, ids...).Result()
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var s realm.Submission
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return fmt.Errorf("decode action %s: %w", ids[i], err)
			}
			s.Resolved = true
			data, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("encode action %s: %w", ids[i], err)
			}
			pipe.HSet(ctx, key, s.ID, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	return nil
}

// Purge deletes resolved submissions from turns before beforeTurn.
func (c *Client) Purge(ctx context.Context, roomID string, beforeTurn int) error {
	all, err := c.queued(ctx, roomID)
	if err != nil {
		return err
	}
	var stale []string
	for _, s := range all {
		if s.Resolved && s.Turn < beforeTurn {
			stale = append(stale, s.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return c.rdb.HDel(ctx, actionsKey(roomID), stale...).Err()
}

func (c *Client) queued(ctx context.Context, roomID string) ([]realm.Submission, error) {
	vals, err := c.rdb.HVals(ctx, actionsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	out := make([]realm.Submission, 0, len(vals))
	for _, v := range vals {
		var s realm.Submission
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			return nil, fmt.Errorf("decode action: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
