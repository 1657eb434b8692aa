package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// ProtectionRepo provides persistence for protections and their
// history.  It implements the engine's store contract: every
// state-changing write couples the row mutation with its audit event
// inside one transaction, so a transition is never visible without its
// history record.  All timestamps are stored in UTC.
type ProtectionRepo struct {
	db *sql.DB
}

// NewProtectionRepo returns a ProtectionRepo bound to the given database.
func NewProtectionRepo(db *sql.DB) *ProtectionRepo { return &ProtectionRepo{db: db} }

// DB exposes the underlying handle for callers that need to open their
// own transactions.
func (r *ProtectionRepo) DB() *sql.DB { return r.db }

const protectionCols = `id, manager, client, partner, partner_city, sku, area_m2, last4,
	object_city, address, comment, status, created_at, expires_at, closed_at,
	updated_at, extend_count, auto_closed`

func scanProtection(row interface{ Scan(...interface{}) error }) (*model.Protection, error) {
	var p model.Protection
	var area sql.NullFloat64
	var client, partner, partnerCity, sku, last4, objectCity, address, comment sql.NullString
	var closedAt, updatedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.Manager, &client, &partner, &partnerCity, &sku, &area, &last4,
		&objectCity, &address, &comment, &p.Status, &p.CreatedAt, &p.ExpiresAt,
		&closedAt, &updatedAt, &p.ExtendCount, &p.AutoClosed,
	)
	if err != nil {
		return nil, err
	}
	p.Client = client.String
	p.Partner = partner.String
	p.PartnerCity = partnerCity.String
	p.SKU = sku.String
	p.Last4 = last4.String
	p.ObjectCity = objectCity.String
	p.Address = address.String
	p.Comment = comment.String
	if area.Valid {
		a := area.Float64
		p.AreaM2 = &a
	}
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return &p, nil
}

// GetProtection loads one protection by id.  ErrNotFound is returned
// when the id matches no row.
func (r *ProtectionRepo) GetProtection(ctx context.Context, id uint64) (*model.Protection, error) {
	const q = `SELECT ` + protectionCols + ` FROM protections WHERE id = ?`
	p, err := scanProtection(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ActiveProtections returns every protection in the active status.
// The duplicate check reads this entire set on each create.
func (r *ProtectionRepo) ActiveProtections(ctx context.Context) ([]model.Protection, error) {
	const q = `SELECT ` + protectionCols + ` FROM protections WHERE status = 'active'`
	return r.queryProtections(ctx, q)
}

// ListExpiring returns active protections expiring at or before the
// cutoff, for reminder fan-out.
func (r *ProtectionRepo) ListExpiring(ctx context.Context, cutoff time.Time) ([]model.Protection, error) {
	const q = `SELECT ` + protectionCols + ` FROM protections
	           WHERE status = 'active' AND expires_at <= ?`
	return r.queryProtections(ctx, q, cutoff.UTC())
}

func (r *ProtectionRepo) queryProtections(ctx context.Context, q string, args ...interface{}) ([]model.Protection, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Protection, 0)
	for rows.Next() {
		p, err := scanProtection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertProtection inserts a new protection and its audit event in one
// transaction, populating p.ID and ev.ProtectionID.
func (r *ProtectionRepo) InsertProtection(ctx context.Context, p *model.Protection, ev *model.AuditEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO protections
	    (manager, client, partner, partner_city, sku, area_m2, last4,
	     object_city, address, comment, status, created_at, expires_at,
	     closed_at, updated_at, extend_count, auto_closed)
	    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		p.Manager, p.Client, p.Partner, p.PartnerCity, p.SKU, nullFloat(p.AreaM2),
		p.Last4, p.ObjectCity, p.Address, p.Comment, p.Status,
		p.CreatedAt.UTC(), p.ExpiresAt.UTC(), nullTime(p.ClosedAt), nullTime(p.UpdatedAt),
		p.ExtendCount, p.AutoClosed,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	ev.ProtectionID = p.ID
	if err := insertEventTx(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateProtection writes the mutable columns of a protection together
// with its audit event in one transaction.
func (r *ProtectionRepo) UpdateProtection(ctx context.Context, p *model.Protection, ev *model.AuditEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE protections
	    SET sku = ?, area_m2 = ?, comment = ?, status = ?, expires_at = ?,
	        closed_at = ?, updated_at = ?, extend_count = ?, auto_closed = ?
	    WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q,
		p.SKU, nullFloat(p.AreaM2), p.Comment, p.Status, p.ExpiresAt.UTC(),
		nullTime(p.ClosedAt), nullTime(p.UpdatedAt), p.ExtendCount, p.AutoClosed,
		p.ID,
	); err != nil {
		return err
	}
	if err := insertEventTx(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AppendEvent writes a history-only event outside any row mutation.
func (r *ProtectionRepo) AppendEvent(ctx context.Context, ev *model.AuditEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	const q = `INSERT INTO history (protection_id, at, actor, action, payload) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q, ev.ProtectionID, ev.At.UTC(), ev.Actor, ev.Action, string(payload))
	return err
}

func insertEventTx(ctx context.Context, tx *sql.Tx, ev *model.AuditEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	const q = `INSERT INTO history (protection_id, at, actor, action, payload) VALUES (?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q, ev.ProtectionID, ev.At.UTC(), ev.Actor, ev.Action, string(payload))
	return err
}

// ListFilters narrows the protection listing.  Deleted rows are hidden
// unless their status is requested explicitly.
type ListFilters struct {
	Search  string
	Manager string
	Status  string
}

// List returns protections matching the filters, newest first.
func (r *ProtectionRepo) List(ctx context.Context, f ListFilters) ([]model.Protection, error) {
	q := `SELECT ` + protectionCols + ` FROM protections WHERE 1=1`
	args := make([]interface{}, 0, 10)
	if f.Status == "" {
		q += ` AND status != 'deleted'`
	} else {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		s := "%" + strings.ToLower(f.Search) + "%"
		q += ` AND (LOWER(manager) LIKE ? OR LOWER(client) LIKE ? OR LOWER(partner) LIKE ?
		       OR LOWER(partner_city) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(last4) LIKE ?
		       OR LOWER(object_city) LIKE ? OR LOWER(address) LIKE ?)`
		for i := 0; i < 8; i++ {
			args = append(args, s)
		}
	}
	if f.Manager != "" {
		q += ` AND manager = ?`
		args = append(args, f.Manager)
	}
	q += ` ORDER BY created_at DESC`
	return r.queryProtections(ctx, q, args...)
}

// ListByManager returns all protections owned by the named manager,
// active first, then by descending id.
func (r *ProtectionRepo) ListByManager(ctx context.Context, manager string) ([]model.Protection, error) {
	const q = `SELECT ` + protectionCols + ` FROM protections
	           WHERE manager = ?
	           ORDER BY CASE status
	               WHEN 'active' THEN 1
	               WHEN 'pending' THEN 2
	               WHEN 'success' THEN 3
	               WHEN 'closed' THEN 4
	               WHEN 'deleted' THEN 5
	               ELSE 6 END,
	           id DESC`
	return r.queryProtections(ctx, q, manager)
}

// Stats aggregates protections per manager, deleted rows excluded.
func (r *ProtectionRepo) Stats(ctx context.Context) ([]model.ManagerStats, error) {
	const q = `SELECT manager,
	        COUNT(*) AS total,
	        SUM(CASE WHEN status='active'  THEN 1 ELSE 0 END) AS active_cnt,
	        SUM(CASE WHEN status='success' THEN 1 ELSE 0 END) AS success_cnt,
	        SUM(CASE WHEN status='closed'  THEN 1 ELSE 0 END) AS closed_cnt,
	        ROUND(SUM(CASE WHEN status='active'  THEN COALESCE(area_m2,0) ELSE 0 END), 1) AS active_area,
	        ROUND(SUM(CASE WHEN status='success' THEN COALESCE(area_m2,0) ELSE 0 END), 1) AS success_area,
	        ROUND(SUM(CASE WHEN status='closed'  THEN COALESCE(area_m2,0) ELSE 0 END), 1) AS closed_area
	    FROM protections
	    WHERE status != 'deleted'
	    GROUP BY manager`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ManagerStats, 0)
	for rows.Next() {
		var s model.ManagerStats
		if err := rows.Scan(&s.Manager, &s.Total, &s.Active, &s.Success, &s.Closed,
			&s.ActiveArea, &s.SuccessArea, &s.ClosedArea); err != nil {
			return nil, err
		}
		if s.Total > 0 {
			s.SuccessRate = int(float64(s.Success)/float64(s.Total)*100 + 0.5)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
