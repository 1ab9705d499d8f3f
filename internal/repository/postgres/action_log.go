package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// ActionLogRepo archives resolved submissions.
type ActionLogRepo struct {
	db *sql.DB
}

// NewActionLogRepo creates an ActionLogRepo.
func NewActionLogRepo(db *sql.DB) *ActionLogRepo {
	return &ActionLogRepo{db: db}
}

var _ repository.ActionLog = (*ActionLogRepo)(nil)

// Archive records each submission with its outcome. Submissions without an
// outcome are stored as failed.
func (r *ActionLogRepo) Archive(ctx context.Context, roomID string, subs []realm.Submission, outcomes []realm.SubmissionOutcome) error {
	if len(subs) == 0 {
		return nil
	}
	byID := make(map[string]realm.SubmissionOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ID] = o
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range subs {
		o, ok := byID[s.ID]
		if !ok {
			o.Error = "not applied"
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO action_log (id, room_id, player_id, turn, action_type, data, ok, error, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET ok = EXCLUDED.ok, error = EXCLUDED.error, archived_at = now()`,
			s.ID, roomID, int64(s.PlayerID), s.Turn, string(s.Type), []byte(s.Data), o.OK, o.Error, s.SubmittedAt)
		if err != nil {
			return fmt.Errorf("archive action %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}
