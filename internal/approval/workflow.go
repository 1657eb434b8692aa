// Package approval drives the human-review workflow for pending
// protections: fanning the notice out to every responsible recipient,
// recording the produced message handles, and reconciling all of them
// to the final text once a decision lands.
package approval

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/notify"
	"github.com/aquafloor/projectguard/internal/repository"
)

// Decider is the slice of the reservation engine the workflow feeds
// decisions into.
type Decider interface {
	Approve(ctx context.Context, id uint64) (*model.Protection, error)
	Reject(ctx context.Context, id uint64, reason string) (*model.Protection, error)
}

// Directory answers who should hear about a manager's protections.
type Directory interface {
	ManagerByName(ctx context.Context, name string) (*model.User, error)
	Assistants(ctx context.Context, managerUserID uint64) ([]model.User, error)
	AdminsByGroup(ctx context.Context, groupTag string) ([]model.User, error)
	Superadmins(ctx context.Context) ([]model.User, error)
}

// FanoutStore persists recipient/handle pairs for later reconciliation.
type FanoutStore interface {
	Insert(ctx context.Context, rec *model.FanoutRecord) error
	ListByProtection(ctx context.Context, protectionID uint64) ([]model.FanoutRecord, error)
}

// Workflow wires the decider, the user directory, the fan-out store
// and the notification gateway together.  Delivery failures are logged
// and never fail the underlying operation: the state transition is
// committed before any message is touched, so a decision stays durable
// even when some recipients are unreachable.
type Workflow struct {
	decider Decider
	users   Directory
	fanouts FanoutStore
	gateway notify.Gateway
	// onDecision, when set, is invoked after a decision has been
	// committed and reconciled; errors are logged only.
	onDecision func(ctx context.Context, p *model.Protection, approved bool)
	now        func() time.Time
}

// New returns a Workflow over the given collaborators.
func New(decider Decider, users Directory, fanouts FanoutStore, gateway notify.Gateway) *Workflow {
	return &Workflow{
		decider: decider,
		users:   users,
		fanouts: fanouts,
		gateway: gateway,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OnDecision registers a post-decision hook (event publishing).
func (w *Workflow) OnDecision(fn func(ctx context.Context, p *model.Protection, approved bool)) {
	w.onDecision = fn
}

// Recipients resolves the full notice audience for a manager name:
// the manager's own chat if registered, every assistant linked to
// them, every admin sharing their group tag, and every superadmin.
// Duplicates are collapsed preserving first-seen order.
func (w *Workflow) Recipients(ctx context.Context, managerName string) ([]int64, error) {
	var ordered []int64
	seen := make(map[int64]struct{})
	add := func(id int64) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	mgr, err := w.users.ManagerByName(ctx, managerName)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if mgr != nil {
		add(mgr.TelegramID)
		assistants, err := w.users.Assistants(ctx, mgr.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assistants {
			add(a.TelegramID)
		}
		if mgr.GroupTag != "" {
			admins, err := w.users.AdminsByGroup(ctx, mgr.GroupTag)
			if err != nil {
				return nil, err
			}
			for _, a := range admins {
				add(a.TelegramID)
			}
		}
	}
	supers, err := w.users.Superadmins(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range supers {
		add(s.TelegramID)
	}
	return ordered, nil
}

// NotifyPending fans the "new pending protection" notice out to every
// recipient with approve/reject buttons and records one fan-out row
// per delivered message.  An unreachable recipient is logged and
// skipped; it never blocks delivery to the others.
func (w *Workflow) NotifyPending(ctx context.Context, p *model.Protection) error {
	recipients, err := w.Recipients(ctx, p.Manager)
	if err != nil {
		return err
	}
	text := pendingText(p)
	buttons := []notify.Button{
		{Text: "Approve", Data: fmt.Sprintf("approve:%d", p.ID)},
		{Text: "Reject", Data: fmt.Sprintf("reject:%d", p.ID)},
	}
	for _, chatID := range recipients {
		msgID, err := w.gateway.Send(ctx, chatID, text, buttons)
		if err != nil {
			log.Printf("approval: send to chat %d failed: %v", chatID, err)
			continue
		}
		rec := &model.FanoutRecord{
			ProtectionID: p.ID,
			ChatID:       chatID,
			MessageID:    msgID,
			CreatedAt:    w.now(),
		}
		if err := w.fanouts.Insert(ctx, rec); err != nil {
			log.Printf("approval: store handle for chat %d failed: %v", chatID, err)
		}
	}
	return nil
}

// Approve commits the pending→active transition and then edits every
// fanned-out message to the approved text.  Edit failures are logged
// and skipped; the transition has already been committed.
func (w *Workflow) Approve(ctx context.Context, id uint64) (*model.Protection, error) {
	p, err := w.decider.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	w.reconcile(ctx, p.ID, approvedText(p))
	if w.onDecision != nil {
		w.onDecision(ctx, p, true)
	}
	return p, nil
}

// Reject commits the pending→rejected transition and then edits every
// fanned-out message to the rejected text.
func (w *Workflow) Reject(ctx context.Context, id uint64, reason string) (*model.Protection, error) {
	p, err := w.decider.Reject(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	w.reconcile(ctx, p.ID, rejectedText(p, reason))
	if w.onDecision != nil {
		w.onDecision(ctx, p, false)
	}
	return p, nil
}

func (w *Workflow) reconcile(ctx context.Context, protectionID uint64, text string) {
	records, err := w.fanouts.ListByProtection(ctx, protectionID)
	if err != nil {
		log.Printf("approval: list handles for protection %d failed: %v", protectionID, err)
		return
	}
	for _, rec := range records {
		if err := w.gateway.Edit(ctx, rec.ChatID, rec.MessageID, text); err != nil {
			log.Printf("approval: edit message %d in chat %d failed: %v", rec.MessageID, rec.ChatID, err)
		}
	}
}

// SendReminder delivers an expiry reminder to the manager and their
// assistants only.  No handles are tracked and no reconciliation
// happens: reminders are fire-and-forget, errors logged only.
func (w *Workflow) SendReminder(ctx context.Context, p *model.Protection) {
	var recipients []int64
	mgr, err := w.users.ManagerByName(ctx, p.Manager)
	if err != nil {
		if err != repository.ErrNotFound {
			log.Printf("approval: resolve manager %q failed: %v", p.Manager, err)
		}
		return
	}
	if mgr.TelegramID != 0 {
		recipients = append(recipients, mgr.TelegramID)
	}
	assistants, err := w.users.Assistants(ctx, mgr.ID)
	if err != nil {
		log.Printf("approval: resolve assistants of %q failed: %v", p.Manager, err)
	}
	for _, a := range assistants {
		if a.TelegramID != 0 {
			recipients = append(recipients, a.TelegramID)
		}
	}
	text := reminderText(p)
	for _, chatID := range recipients {
		if _, err := w.gateway.Send(ctx, chatID, text, nil); err != nil {
			log.Printf("approval: reminder to chat %d failed: %v", chatID, err)
		}
	}
}

func pendingText(p *model.Protection) string {
	return fmt.Sprintf(
		"<b>New protection pending review</b>\n"+
			"Manager: %s\nPartner: %s (%s)\nSKU: %s\nArea: %s m²\n"+
			"Object: %s, %s\nComment: %s",
		orDash(p.Manager), orDash(p.Partner), orDash(p.PartnerCity), orDash(p.SKU),
		areaOrDash(p.AreaM2), orDash(p.ObjectCity), orDash(p.Address), orDash(p.Comment),
	)
}

func approvedText(p *model.Protection) string {
	return fmt.Sprintf(
		"Protection #%d approved.\n\nManager: %s\nPartner: %s (%s)\nSKU: %s\nArea: %s m²",
		p.ID, orDash(p.Manager), orDash(p.Partner), orDash(p.PartnerCity), orDash(p.SKU),
		areaOrDash(p.AreaM2),
	)
}

func rejectedText(p *model.Protection, reason string) string {
	return fmt.Sprintf(
		"Protection #%d rejected: %s\n\nManager: %s\nPartner: %s (%s)\nSKU: %s\nArea: %s m²",
		p.ID, reason, orDash(p.Manager), orDash(p.Partner), orDash(p.PartnerCity), orDash(p.SKU),
		areaOrDash(p.AreaM2),
	)
}

func reminderText(p *model.Protection) string {
	return fmt.Sprintf(
		"Protection #%d (%s) for manager %s expires %s (2 days left).",
		p.ID, orDash(p.SKU), p.Manager, p.ExpiresAt.Format("2006-01-02"),
	)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func areaOrDash(a *float64) string {
	if a == nil {
		return "—"
	}
	return fmt.Sprintf("%g", *a)
}
