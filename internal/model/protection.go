package model

import "time"

// Protection statuses.  A protection is created either directly as
// StatusActive or routed through admin review as StatusPending.  The
// four remaining statuses are terminal: once reached, the row is never
// mutated again (history rows referencing it may still be appended).
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusSuccess  = "success"
	StatusClosed   = "closed"
	StatusDeleted  = "deleted"
	StatusRejected = "rejected"
)

// Protection records an exclusive time-boxed claim on a product/area
// combination held by a manager for a partner.  It mirrors the
// protections table.
//
// Fields:
//  ID          – primary key identifier, immutable once assigned.
//  Manager     – display name of the owning manager.
//  Client      – end client the job is for.
//  Partner     – partner company the job is sold through.
//  PartnerCity – partner's city.
//  SKU         – display string composed from the reserved line items.
//  AreaM2      – normalized total reserved area; nil only transiently.
//  Last4       – last four digits of the partner identifier.
//  ObjectCity  – city of the physical object.
//  Address     – address of the physical object.
//  Comment     – free-text note from the manager.
//  Status      – one of the Status* constants above.
//  CreatedAt   – creation timestamp (UTC).
//  ExpiresAt   – lease deadline; set at creation and on every extension.
//  ClosedAt    – when a terminal status was reached; nil otherwise.
//  UpdatedAt   – last row mutation; nil when never edited.
//  ExtendCount – number of self-service extensions performed so far.
//  AutoClosed  – whether the protection was closed by the system.
type Protection struct {
	ID          uint64     // protections.id
	Manager     string     // protections.manager
	Client      string     // protections.client
	Partner     string     // protections.partner
	PartnerCity string     // protections.partner_city
	SKU         string     // protections.sku
	AreaM2      *float64   // protections.area_m2 (nullable)
	Last4       string     // protections.last4
	ObjectCity  string     // protections.object_city
	Address     string     // protections.address
	Comment     string     // protections.comment
	Status      string     // protections.status
	CreatedAt   time.Time  // protections.created_at
	ExpiresAt   time.Time  // protections.expires_at
	ClosedAt    *time.Time // protections.closed_at (nullable)
	UpdatedAt   *time.Time // protections.updated_at (nullable)
	ExtendCount int        // protections.extend_count
	AutoClosed  bool       // protections.auto_closed
}

// Area returns the total area or zero when it is not yet known.
func (p *Protection) Area() float64 {
	if p.AreaM2 == nil {
		return 0
	}
	return *p.AreaM2
}

// SKUItem is one reserved line item supplied by the client on create
// and edit.  Area is optional; when every item carries its own area the
// totals are summed, otherwise a single shared area applies.
type SKUItem struct {
	SKU  string   `json:"sku"`
	Type string   `json:"type"`
	Area *float64 `json:"area,omitempty"`
}
