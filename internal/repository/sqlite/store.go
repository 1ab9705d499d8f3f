// Package sqlite is a single-file WorldStore and NewsStore for local
// simulation runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Store wraps a SQLite connection.
type Store struct {
	conn *sqlx.DB
}

var (
	_ repository.WorldStore = (*Store)(nil)
	_ repository.NewsStore  = (*Store)(nil)
)

// Open opens or creates a SQLite database at path. ":memory:" gives a
// private in-process database.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		deadline INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_records (
		room_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (room_id, kind, seq)
	);

	CREATE TABLE IF NOT EXISTS news (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		room_id TEXT NOT NULL,
		turn INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_news_room_turn ON news(room_id, turn);
	CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status, deadline);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type roomRow struct {
	Data string `db:"data"`
}

type recordRow struct {
	Kind string `db:"kind"`
	Seq  int    `db:"seq"`
	Data string `db:"data"`
}

// CreateRoom inserts a new room with its entities.
func (s *Store) CreateRoom(ctx context.Context, w *realm.World) error {
	return s.write(ctx, w, true)
}

// SaveWorld replaces the room row and all its records.
func (s *Store) SaveWorld(ctx context.Context, w *realm.World) error {
	return s.write(ctx, w, false)
}

func (s *Store) write(ctx context.Context, w *realm.World, create bool) error {
	room, err := json.Marshal(w.Room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	recs, err := repository.Flatten(w)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var deadline int64
	if !w.Room.Deadline.IsZero() {
		deadline = w.Room.Deadline.Unix()
	}
	if create {
		_, err = tx.ExecContext(ctx, `INSERT INTO rooms (id, status, deadline, created_at, data) VALUES (?, ?, ?, ?, ?)`,
			w.Room.ID, string(w.Room.Status), deadline, time.Now().Unix(), string(room))
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `UPDATE rooms SET status = ?, deadline = ?, data = ? WHERE id = ?`,
			string(w.Room.Status), deadline, string(room), w.Room.ID)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("room %s: %w", w.Room.ID, repository.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM world_records WHERE room_id = ?`, w.Room.ID); err != nil {
			return fmt.Errorf("clear records: %w", err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO world_records (room_id, kind, seq, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, w.Room.ID, string(r.Kind), r.Seq, string(r.Data)); err != nil {
			return fmt.Errorf("insert %s %d: %w", r.Kind, r.Seq, err)
		}
	}
	return tx.Commit()
}

// LoadWorld reads a room and its records.
func (s *Store) LoadWorld(ctx context.Context, roomID string) (*realm.World, error) {
	var row roomRow
	err := s.conn.GetContext(ctx, &row, `SELECT data FROM rooms WHERE id = ?`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	var room realm.Room
	if err := json.Unmarshal([]byte(row.Data), &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}

	var rows []recordRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT kind, seq, data FROM world_records WHERE room_id = ? ORDER BY kind, seq`, roomID); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	recs := make([]repository.Record, len(rows))
	for i, r := range rows {
		recs[i] = repository.Record{Kind: repository.Kind(r.Kind), Seq: r.Seq, Data: json.RawMessage(r.Data)}
	}
	return repository.Assemble(room, recs)
}

// ListRooms returns rooms with the given status; empty lists all.
func (s *Store) ListRooms(ctx context.Context, status realm.RoomStatus) ([]realm.Room, error) {
	return s.rooms(ctx, `SELECT data FROM rooms WHERE ? = '' OR status = ? ORDER BY created_at DESC`, string(status), string(status))
}

// ListDue returns playing rooms whose deadline has passed.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]realm.Room, error) {
	return s.rooms(ctx, `SELECT data FROM rooms WHERE status = ? AND deadline > 0 AND deadline <= ? ORDER BY deadline`,
		string(realm.RoomPlaying), now.Unix())
}

func (s *Store) rooms(ctx context.Context, query string, args ...any) ([]realm.Room, error) {
	var rows []roomRow
	if err := s.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]realm.Room, 0, len(rows))
	for _, r := range rows {
		var room realm.Room
		if err := json.Unmarshal([]byte(r.Data), &room); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		out = append(out, room)
	}
	return out, nil
}

// AppendNews stores items in order, skipping ids already present.
func (s *Store) AppendNews(ctx context.Context, roomID string, news []realm.News) error {
	if len(news) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, n := range news {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode news %s: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO news (id, room_id, turn, data) VALUES (?, ?, ?, ?)`,
			n.ID, roomID, n.Turn, string(data)); err != nil {
			return fmt.Errorf("insert news %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// NewsSince returns items from sinceTurn on that player may read.
func (s *Store) NewsSince(ctx context.Context, roomID string, sinceTurn int, player realm.PlayerID) ([]realm.News, error) {
	var rows []roomRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT data FROM news WHERE room_id = ? AND turn >= ? ORDER BY seq`, roomID, sinceTurn); err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	var out []realm.News
	for _, r := range rows {
		var n realm.News
		if err := json.Unmarshal([]byte(r.Data), &n); err != nil {
			return nil, fmt.Errorf("decode news: %w", err)
		}
		if n.VisibleTo(player) {
			out = append(out, n)
		}
	}
	return out, nil
}
