package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// WorldRepo stores rooms in the rooms table and their entities as ordered
// JSONB rows in world_records.
type WorldRepo struct {
	db *sql.DB
}

// NewWorldRepo creates a WorldRepo.
func NewWorldRepo(db *sql.DB) *WorldRepo {
	return &WorldRepo{db: db}
}

var _ repository.WorldStore = (*WorldRepo)(nil)

// CreateRoom inserts the room row and its initial entities.
func (r *WorldRepo) CreateRoom(ctx context.Context, w *realm.World) error {
	room, err := json.Marshal(w.Room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, status, turn, phase, deadline, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.Room.ID, w.Room.Name, w.Room.Status, w.Room.Turn, w.Room.Phase, nullTime(w.Room.Deadline), room, createdAt(w.Room))
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if err := copyRecords(ctx, tx, w); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadWorld reads the room and all its records. Returns ErrNotFound for an
// unknown room.
func (r *WorldRepo) LoadWorld(ctx context.Context, roomID string) (*realm.World, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM rooms WHERE id = $1`, roomID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	var room realm.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, seq, data FROM world_records WHERE room_id = $1 ORDER BY kind, seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var recs []repository.Record
	for rows.Next() {
		var rec repository.Record
		if err := rows.Scan(&rec.Kind, &rec.Seq, &rec.Data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return repository.Assemble(room, recs)
}

// SaveWorld rewrites the room row and replaces every record in one
// transaction.
func (r *WorldRepo) SaveWorld(ctx context.Context, w *realm.World) error {
	room, err := json.Marshal(w.Room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET name = $2, status = $3, turn = $4, phase = $5, deadline = $6, data = $7, updated_at = now()
		 WHERE id = $1`,
		w.Room.ID, w.Room.Name, w.Room.Status, w.Room.Turn, w.Room.Phase, nullTime(w.Room.Deadline), room)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %s: %w", w.Room.ID, repository.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM world_records WHERE room_id = $1`, w.Room.ID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	if err := copyRecords(ctx, tx, w); err != nil {
		return err
	}
	return tx.Commit()
}

// ListRooms returns rooms with the given status, newest first. An empty
// status lists every room.
func (r *WorldRepo) ListRooms(ctx context.Context, status realm.RoomStatus) ([]realm.Room, error) {
	return r.queryRooms(ctx,
		`SELECT data FROM rooms WHERE $1 = '' OR status = $1 ORDER BY created_at DESC LIMIT 100`, string(status))
}

// ListDue returns playing rooms whose deadline has passed.
func (r *WorldRepo) ListDue(ctx context.Context, now time.Time) ([]realm.Room, error) {
	return r.queryRooms(ctx,
		`SELECT data FROM rooms WHERE status = $1 AND deadline IS NOT NULL AND deadline <= $2 ORDER BY deadline`,
		string(realm.RoomPlaying), now)
}

func (r *WorldRepo) queryRooms(ctx context.Context, query string, args ...any) ([]realm.Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []realm.Room
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		var room realm.Room
		if err := json.Unmarshal(data, &room); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func copyRecords(ctx context.Context, tx *sql.Tx, w *realm.World) error {
	recs, err := repository.Flatten(w)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("world_records", "room_id", "kind", "seq", "data"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, w.Room.ID, string(rec.Kind), rec.Seq, string(rec.Data)); err != nil {
			stmt.Close()
			return fmt.Errorf("copy %s %d: %w", rec.Kind, rec.Seq, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	return stmt.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func createdAt(room realm.Room) time.Time {
	if room.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return room.CreatedAt
}
