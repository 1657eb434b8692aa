package engine

import (
	"context"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// Store is the persistence contract the engine mutates protections
// through.  Implementations must make the row write and the audit
// append of Insert/Update a single atomic unit: a transition is never
// visible without its history event, and vice versa.
//
// Lookups return repository.ErrNotFound for unknown ids.
type Store interface {
	// GetProtection loads one protection by id.
	GetProtection(ctx context.Context, id uint64) (*model.Protection, error)
	// ActiveProtections returns every protection currently in the
	// active status; the overlap check reads this entire set.
	ActiveProtections(ctx context.Context) ([]model.Protection, error)
	// InsertProtection persists a new protection together with its
	// audit event atomically and populates p.ID.
	InsertProtection(ctx context.Context, p *model.Protection, ev *model.AuditEvent) error
	// UpdateProtection persists a mutated protection together with its
	// audit event atomically.
	UpdateProtection(ctx context.Context, p *model.Protection, ev *model.AuditEvent) error
	// AppendEvent writes a history-only event (extension requests,
	// audited quota denials) without touching the protection row.
	AppendEvent(ctx context.Context, ev *model.AuditEvent) error
	// ListExpiring returns active protections whose deadline is at or
	// before the cutoff, for reminder fan-out.
	ListExpiring(ctx context.Context, cutoff time.Time) ([]model.Protection, error)
}
