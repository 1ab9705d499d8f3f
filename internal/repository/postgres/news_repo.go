package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// NewsRepo handles the per-room news feed.
type NewsRepo struct {
	db *sql.DB
}

// NewNewsRepo creates a NewsRepo.
func NewNewsRepo(db *sql.DB) *NewsRepo {
	return &NewsRepo{db: db}
}

var _ repository.NewsStore = (*NewsRepo)(nil)

// AppendNews inserts items in order. Re-appending an existing id is a no-op
// so a re-run phase does not duplicate its feed.
func (r *NewsRepo) AppendNews(ctx context.Context, roomID string, news []realm.News) error {
	if len(news) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, n := range news {
		var data any
		if len(n.Data) > 0 {
			raw, err := json.Marshal(n.Data)
			if err != nil {
				return fmt.Errorf("encode news %s: %w", n.ID, err)
			}
			data = raw
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO news (id, room_id, turn, phase, kind, scope, players, text, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			n.ID, roomID, n.Turn, string(n.Phase), string(n.Kind), string(n.Scope), pq.Array(playerInts(n.Players)), n.Text, data)
		if err != nil {
			return fmt.Errorf("insert news %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// NewsSince returns global items plus those addressed to player from
// sinceTurn onward.
func (r *NewsRepo) NewsSince(ctx context.Context, roomID string, sinceTurn int, player realm.PlayerID) ([]realm.News, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, turn, phase, kind, scope, players, text, data
		 FROM news
		 WHERE room_id = $1 AND turn >= $2 AND (scope = 'global' OR $3::bigint = ANY(players))
		 ORDER BY seq`, roomID, sinceTurn, int64(player))
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var out []realm.News
	for rows.Next() {
		var (
			n       realm.News
			players pq.Int64Array
			data    []byte
		)
		if err := rows.Scan(&n.ID, &n.Turn, &n.Phase, &n.Kind, &n.Scope, &players, &n.Text, &data); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		for _, p := range players {
			n.Players = append(n.Players, realm.PlayerID(p))
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("decode news %s: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func playerInts(ps []realm.PlayerID) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = int64(p)
	}
	return out
}
