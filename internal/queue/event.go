// Package queue defines message payloads exchanged over the message broker.
package queue

// ProtectionDecidedEvent is published whenever a pending protection is
// approved or rejected. It carries enough context for downstream
// consumers to log or trigger analytics without querying the primary
// database.
type ProtectionDecidedEvent struct {
	ProtectionID uint64  `json:"protection_id"`
	Manager      string  `json:"manager"`
	Partner      string  `json:"partner"`
	SKU          string  `json:"sku"`
	AreaM2       float64 `json:"area_m2"`
	Approved     bool    `json:"approved"`
	Reason       string  `json:"reason,omitempty"`
	ExpiresAt    string  `json:"expires_at"`
	DecidedAt    string  `json:"decided_at"`
}
