package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// HistoryRepo provides read access to the append-only history table.
// Writes go through ProtectionRepo so they share the transaction of
// the row mutation that caused them; this repo only queries.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a HistoryRepo bound to the given database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// unfilteredLimit bounds the global history listing.
const unfilteredLimit = 500

// HistoryEntry is one audit event as returned to clients, with the
// payload decoded from its stored JSON form.
type HistoryEntry struct {
	ID           uint64                 `json:"id"`
	ProtectionID uint64                 `json:"protection_id"`
	At           time.Time              `json:"at"`
	Actor        string                 `json:"actor"`
	Action       string                 `json:"action"`
	Payload      map[string]interface{} `json:"payload"`
}

// ListByProtection returns all events for one protection, newest
// first.  History outlives the protection's visible record, so no
// existence check is performed on the id.
func (r *HistoryRepo) ListByProtection(ctx context.Context, protectionID uint64) ([]HistoryEntry, error) {
	const q = `SELECT id, protection_id, at, actor, action, payload
	           FROM history WHERE protection_id = ? ORDER BY at DESC, id DESC`
	return r.queryEntries(ctx, q, protectionID)
}

// ListRecent returns the newest events across all protections, bounded
// by a fixed page size.
func (r *HistoryRepo) ListRecent(ctx context.Context) ([]HistoryEntry, error) {
	const q = `SELECT id, protection_id, at, actor, action, payload
	           FROM history ORDER BY at DESC, id DESC LIMIT ?`
	return r.queryEntries(ctx, q, unfilteredLimit)
}

func (r *HistoryRepo) queryEntries(ctx context.Context, q string, args ...interface{}) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.ProtectionID, &e.At, &e.Actor, &e.Action, &payload); err != nil {
			return nil, err
		}
		e.Payload = decodePayload(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtendRequest is one pending extension escalation joined with the
// protection it targets, for the admin review listing.
type ExtendRequest struct {
	HistoryID    uint64    `json:"history_id"`
	ProtectionID uint64    `json:"protection_id"`
	RequestedAt  time.Time `json:"requested_at"`
	Days         int       `json:"days"`
	Reason       string    `json:"reason"`
	Manager      string    `json:"manager"`
	Partner      string    `json:"partner"`
	SKU          string    `json:"sku"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExtendRequests returns every recorded extension request, newest
// first, with the owning protection's summary attached.
func (r *HistoryRepo) ExtendRequests(ctx context.Context) ([]ExtendRequest, error) {
	const q = `SELECT h.id, h.protection_id, h.at, h.payload,
	                  p.manager, p.partner, p.sku, p.expires_at
	           FROM history h
	           JOIN protections p ON p.id = h.protection_id
	           WHERE h.action = 'extend_request'
	           ORDER BY h.at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ExtendRequest, 0)
	for rows.Next() {
		var req ExtendRequest
		var payload sql.NullString
		var partner, sku sql.NullString
		if err := rows.Scan(&req.HistoryID, &req.ProtectionID, &req.RequestedAt, &payload,
			&req.Manager, &partner, &sku, &req.ExpiresAt); err != nil {
			return nil, err
		}
		req.Partner = partner.String
		req.SKU = sku.String
		body := decodePayload(payload)
		if d, ok := body["days"].(float64); ok {
			req.Days = int(d)
		}
		if s, ok := body["reason"].(string); ok {
			req.Reason = s
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodePayload(raw sql.NullString) map[string]interface{} {
	body := map[string]interface{}{}
	if raw.Valid && raw.String != "" {
		// Malformed payloads degrade to empty, never fail a listing.
		_ = json.Unmarshal([]byte(raw.String), &body)
	}
	return body
}
