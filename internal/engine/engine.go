// Package engine owns the protection lifecycle: the state machine, the
// duplicate check, lease computation and the extension quota.  It is
// the only writer of protection rows, and every state-changing call
// writes exactly one audit event in the same atomic unit as the row.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// MinDirectArea is the smallest total area accepted on direct create.
// Smaller jobs must be routed through admin review instead.
const MinDirectArea = 50.0

// Default day counts applied by the HTTP surface when the caller does
// not specify them.
const (
	DefaultExtendDays  = 10
	DefaultRequestDays = 5
)

// maxSelfExtensions is the self-service extension quota per
// protection.  Admin extensions bypass it and never count toward it.
const maxSelfExtensions = 2

// Engine applies protection transitions against a Store.  Mutating
// operations run under one global critical section: the duplicate
// check reads the entire active set, and two concurrent creates must
// not both pass the check against a pre-insert snapshot of the same
// rows.  Notification work never happens under this lock.
type Engine struct {
	store Store
	now   func() time.Time

	mu sync.Mutex
}

// New returns an Engine bound to the given store.
func New(store Store) *Engine {
	return &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams carries the caller-supplied fields of a new protection.
// Items and AreaM2 feed display composition and the duplicate check;
// SKU is the bare fallback when no line items are submitted.
type CreateParams struct {
	Manager     string
	Client      string
	Partner     string
	PartnerCity string
	SKU         string
	Items       []model.SKUItem
	AreaM2      *float64
	Last4       string
	ObjectCity  string
	Address     string
	Comment     string
}

// Create inserts a protection directly in the active status.  The
// total area must be at least MinDirectArea; the gate runs before the
// duplicate check, which in turn runs before the insert.  On conflict
// the returned error carries the colliding record's summary.
func (e *Engine) Create(ctx context.Context, params CreateParams) (*model.Protection, error) {
	return e.create(ctx, params, model.StatusActive)
}

// CreatePending inserts a protection in the pending status for admin
// review.  The minimum-area gate does not apply (small jobs are what
// review is for) but the duplicate check still runs before the insert.
func (e *Engine) CreatePending(ctx context.Context, params CreateParams) (*model.Protection, error) {
	return e.create(ctx, params, model.StatusPending)
}

func (e *Engine) create(ctx context.Context, params CreateParams, status string) (*model.Protection, error) {
	manager := strings.TrimSpace(params.Manager)
	if manager == "" {
		return nil, validationf("manager is required")
	}
	display, total := ComposeDisplay(params.Items, params.AreaM2, params.SKU)
	if status == model.StatusActive && total < MinDirectArea {
		return nil, validationf("protection requires at least %g m²", MinDirectArea)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.store.ActiveProtections(ctx)
	if err != nil {
		return nil, err
	}
	if hit := firstConflict(buildPairs(params.Items, total, display), active); hit != nil {
		return nil, &ConflictError{Existing: *hit}
	}

	now := e.now()
	p := &model.Protection{
		Manager:     manager,
		Client:      strings.TrimSpace(params.Client),
		Partner:     strings.TrimSpace(params.Partner),
		PartnerCity: strings.TrimSpace(params.PartnerCity),
		SKU:         display,
		Last4:       strings.TrimSpace(params.Last4),
		ObjectCity:  strings.TrimSpace(params.ObjectCity),
		Address:     strings.TrimSpace(params.Address),
		Comment:     strings.TrimSpace(params.Comment),
		Status:      status,
		CreatedAt:   now,
		ExpiresAt:   addDays(now, LeaseDays(total)),
	}
	if total > 0 {
		area := total
		p.AreaM2 = &area
	}

	ev := &model.AuditEvent{
		At:    now,
		Actor: model.ActorManager,
	}
	if status == model.StatusPending {
		ev.Action = model.ActionCreatePending
		ev.Payload = map[string]interface{}{"reason": p.Comment}
	} else {
		ev.Action = model.ActionCreate
		ev.Payload = map[string]interface{}{"sku": display, "area_m2": total}
	}
	if err := e.store.InsertProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// Approve moves a pending protection to active.  Only the pending
// status admits it; the caller's admin role is enforced upstream.
func (e *Engine) Approve(ctx context.Context, id uint64) (*model.Protection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProtection(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusPending {
		return nil, &StateError{Op: "approve", Status: p.Status}
	}
	now := e.now()
	p.Status = model.StatusActive
	p.ClosedAt = nil
	p.UpdatedAt = &now
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           now,
		Actor:        model.ActorAdmin,
		Action:       model.ActionApprove,
		Payload:      map[string]interface{}{"approved": true},
	}
	if err := e.store.UpdateProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// Reject moves a pending protection to the rejected terminal status.
// A reason is required; reject is a distinct outcome from delete.
func (e *Engine) Reject(ctx context.Context, id uint64, reason string) (*model.Protection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a rejection reason is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProtection(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusPending {
		return nil, &StateError{Op: "reject", Status: p.Status}
	}
	now := e.now()
	p.Status = model.StatusRejected
	p.ClosedAt = &now
	p.UpdatedAt = &now
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           now,
		Actor:        model.ActorAdmin,
		Action:       model.ActionReject,
		Payload:      map[string]interface{}{"reason": reason},
	}
	if err := e.store.UpdateProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// EditParams carries the replaceable fields of an active protection.
type EditParams struct {
	SKU     string
	Items   []model.SKUItem
	AreaM2  *float64
	Comment string
}

// Edit replaces the SKU composition, area and comment of an active
// protection.  No state change and no duplicate re-check.
func (e *Engine) Edit(ctx context.Context, id uint64, params EditParams, actor string) (*model.Protection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProtection(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusActive {
		return nil, &StateError{Op: "edit", Status: p.Status}
	}
	display, total := ComposeDisplay(params.Items, params.AreaM2, params.SKU)
	now := e.now()
	p.SKU = display
	if total > 0 {
		area := total
		p.AreaM2 = &area
	} else {
		p.AreaM2 = nil
	}
	p.Comment = strings.TrimSpace(params.Comment)
	p.UpdatedAt = &now
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           now,
		Actor:        actor,
		Action:       model.ActionEdit,
		Payload: map[string]interface{}{
			"new_skus": display,
			"new_area": total,
			"comment":  p.Comment,
		},
	}
	if err := e.store.UpdateProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// Extend pushes the deadline of an active protection forward by the
// given number of days, compounding on the current expires_at.  When
// the actor is the owning manager the extension counts toward the
// self-service quota; once the quota is reached the call is refused
// with NeedsAdmin set and the refusal itself is written to history.
// Admin extensions bypass the quota and never increment the counter.
func (e *Engine) Extend(ctx context.Context, id uint64, days int, actor string) (*model.Protection, error) {
	if days <= 0 {
		return nil, validationf("extension days must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProtection(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusActive {
		return nil, &StateError{Op: "extend", Status: p.Status}
	}
	if actor == model.ActorManager && p.ExtendCount >= maxSelfExtensions {
		denied := &model.AuditEvent{
			ProtectionID: id,
			At:           e.now(),
			Actor:        model.ActorManager,
			Action:       model.ActionExtendDenied,
			Payload:      map[string]interface{}{"current_extend_count": p.ExtendCount},
		}
		if err := e.store.AppendEvent(ctx, denied); err != nil {
			return nil, err
		}
		return nil, &QuotaExceededError{Count: p.ExtendCount, NeedsAdmin: true}
	}
	now := e.now()
	p.ExpiresAt = addDays(p.ExpiresAt, days)
	if actor == model.ActorManager {
		p.ExtendCount++
	}
	p.UpdatedAt = &now
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           now,
		Actor:        actor,
		Action:       model.ActionExtend,
		Payload:      map[string]interface{}{"days": days},
	}
	if err := e.store.UpdateProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// RequestExtend records a manager's escalation for more days without
// changing expires_at or the extension counter.  It exists purely to
// surface requests to admins through the history query surface.
func (e *Engine) RequestExtend(ctx context.Context, id uint64, days int, reason string) error {
	if days <= 0 {
		days = DefaultRequestDays
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "not specified"
	}
	if _, err := e.store.GetProtection(ctx, id); err != nil {
		return err
	}
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           e.now(),
		Actor:        model.ActorManager,
		Action:       model.ActionExtendRequest,
		Payload:      map[string]interface{}{"days": days, "reason": reason},
	}
	return e.store.AppendEvent(ctx, ev)
}

// MarkSuccess closes an active protection as won.  A non-empty
// completion-document reference is required.
func (e *Engine) MarkSuccess(ctx context.Context, id uint64, docRef, actor string) (*model.Protection, error) {
	docRef = strings.TrimSpace(docRef)
	if docRef == "" {
		return nil, validationf("a completion document reference is required")
	}
	return e.terminate(ctx, id, model.StatusSuccess, "mark successful", actor, model.ActionSuccess,
		map[string]interface{}{"doc_ref": docRef})
}

// Close closes an active protection as lost or withdrawn.  A non-empty
// reason is required.
func (e *Engine) Close(ctx context.Context, id uint64, reason, actor string) (*model.Protection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a close reason is required")
	}
	return e.terminate(ctx, id, model.StatusClosed, "close", actor, model.ActionClose,
		map[string]interface{}{"reason": reason})
}

// Delete soft-deletes an active protection.  The reason is optional
// and defaults to a sentinel so older clients keep working.
func (e *Engine) Delete(ctx context.Context, id uint64, reason, actor string) (*model.Protection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "not provided"
	}
	return e.terminate(ctx, id, model.StatusDeleted, "delete", actor, model.ActionDelete,
		map[string]interface{}{"reason": reason})
}

func (e *Engine) terminate(ctx context.Context, id uint64, status, op, actor, action string, payload map[string]interface{}) (*model.Protection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProtection(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusActive {
		return nil, &StateError{Op: op, Status: p.Status}
	}
	now := e.now()
	p.Status = status
	p.ClosedAt = &now
	p.UpdatedAt = &now
	ev := &model.AuditEvent{
		ProtectionID: id,
		At:           now,
		Actor:        actor,
		Action:       action,
		Payload:      payload,
	}
	if err := e.store.UpdateProtection(ctx, p, ev); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads one protection read-only.
func (e *Engine) Get(ctx context.Context, id uint64) (*model.Protection, error) {
	return e.store.GetProtection(ctx, id)
}

// ExpiringWithin returns active protections whose deadline falls
// within the given window from now.  Read-only; used by the sweeper.
func (e *Engine) ExpiringWithin(ctx context.Context, window time.Duration) ([]model.Protection, error) {
	return e.store.ListExpiring(ctx, e.now().Add(window))
}

// CheckDuplicates runs the soft duplicate check: the same band test as
// create enforcement, owner ignored, returning every match instead of
// failing fast.  Nothing is written.
func (e *Engine) CheckDuplicates(ctx context.Context, items []model.SKUItem, sharedArea *float64, sku string) ([]Match, error) {
	display, total := ComposeDisplay(items, sharedArea, sku)
	pairs := buildPairs(items, total, display)
	if len(pairs) == 0 {
		return []Match{}, nil
	}
	active, err := e.store.ActiveProtections(ctx)
	if err != nil {
		return nil, err
	}
	return allMatches(pairs, active), nil
}
