package model

import "time"

// Roles stored in the users table and carried in the JWT "role" claim.
// Roles are resolved once at session issuance; no code path re-derives
// admin rights from table order.
const (
	RoleManager    = "manager"
	RoleAssistant  = "assistant"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// User is an application user as stored in the `users` table.  Accounts
// are keyed by their Telegram id; assistants carry a ManagerID link to
// the manager they work for, and admins may carry a GroupTag scoping
// which managers' notices they receive.
//
// Fields:
//  ID           – primary key identifier.
//  TelegramID   – unique Telegram chat/user id; messaging recipient.
//  Username     – Telegram username, may be empty.
//  FirstName    – display name; managers are matched by this name.
//  Role         – one of the Role* constants.
//  ManagerID    – for assistants, the users.id of their manager.
//  GroupTag     – group label shared between a manager and their admins.
//  Region       – home region, informational.
//  PasswordHash – bcrypt hash for the password login path; may be empty.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	TelegramID   int64     // users.tg_id
	Username     string    // users.tg_username
	FirstName    string    // users.first_name
	Role         string    // users.role
	ManagerID    *uint64   // users.manager_id (nullable)
	GroupTag     string    // users.group_tag
	Region       string    // users.region
	PasswordHash string    `json:"-"` // users.password_hash, never serialized
	CreatedAt    time.Time // users.created_at
}

// Manager is a row of the manager roster.  Protections reference
// managers by display name, so renames cascade into the protections
// table.
type Manager struct {
	ID        uint64    // managers.id
	Name      string    // managers.name
	CreatedAt time.Time // managers.created_at
}

// ManagerStats aggregates a manager's protections by status for the
// roster listing and the stats endpoint.
type ManagerStats struct {
	Manager     string  `json:"manager"`
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Success     int     `json:"success"`
	Closed      int     `json:"closed"`
	SuccessRate int     `json:"success_rate"`
	ActiveArea  float64 `json:"active_area"`
	SuccessArea float64 `json:"success_area"`
	ClosedArea  float64 `json:"closed_area"`
}
