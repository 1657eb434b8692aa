package repository

import (
	"context"
	"database/sql"

	"github.com/aquafloor/projectguard/internal/model"
)

// FanoutRepo persists the correlation between a pending-protection
// notice and the messages it produced.  Rows are append-only; later
// notices for the same protection add rows rather than replacing them.
type FanoutRepo struct {
	db *sql.DB
}

// NewFanoutRepo returns a FanoutRepo bound to the given database.
func NewFanoutRepo(db *sql.DB) *FanoutRepo { return &FanoutRepo{db: db} }

// Insert records one delivered message handle.
func (r *FanoutRepo) Insert(ctx context.Context, rec *model.FanoutRecord) error {
	const q = `INSERT INTO tg_notifications (protection_id, chat_id, message_id, created_at)
	           VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rec.ProtectionID, rec.ChatID, rec.MessageID, rec.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// ListByProtection returns every stored handle for a protection in
// insertion order, so a decision can be reflected to all recipients.
func (r *FanoutRepo) ListByProtection(ctx context.Context, protectionID uint64) ([]model.FanoutRecord, error) {
	const q = `SELECT id, protection_id, chat_id, message_id, created_at
	           FROM tg_notifications WHERE protection_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, protectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.FanoutRecord, 0)
	for rows.Next() {
		var rec model.FanoutRecord
		if err := rows.Scan(&rec.ID, &rec.ProtectionID, &rec.ChatID, &rec.MessageID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
