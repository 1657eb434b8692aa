package model

import "time"

// Actors recorded on audit events.
const (
	ActorManager = "manager"
	ActorAdmin   = "admin"
	ActorSystem  = "system"
)

// Audit action tags.  One tag per state-changing engine call, plus the
// two history-only actions (extend_request, extend_denied_limit) that
// record escalations and refused mutations.
const (
	ActionCreate          = "create"
	ActionCreatePending   = "create_pending"
	ActionApprove         = "approve"
	ActionReject          = "reject"
	ActionEdit            = "edit"
	ActionExtend          = "extend"
	ActionExtendRequest   = "extend_request"
	ActionExtendDenied    = "extend_denied_limit"
	ActionSuccess         = "success"
	ActionClose           = "close"
	ActionDelete          = "delete"
)

// AuditEvent is one append-only history record describing a single
// transition (or refused transition) of a protection.  Events are never
// updated or deleted after insertion, and the protection id is not
// enforced to resolve: history outlives the protection's visible record.
//
// Payload is an opaque key/value bag specific to the action; it is
// stored as JSON in the history table.
type AuditEvent struct {
	ID           uint64                 // history.id
	ProtectionID uint64                 // history.protection_id
	At           time.Time              // history.at
	Actor        string                 // history.actor
	Action       string                 // history.action
	Payload      map[string]interface{} // history.payload (JSON)
}

// FanoutRecord correlates one logical pending-protection notice with a
// message delivered to a single recipient, so the message can later be
// edited in place when the decision lands.  Rows are append-only.
type FanoutRecord struct {
	ID           uint64    // tg_notifications.id
	ProtectionID uint64    // tg_notifications.protection_id
	ChatID       int64     // tg_notifications.chat_id
	MessageID    int64     // tg_notifications.message_id
	CreatedAt    time.Time // tg_notifications.created_at
}
