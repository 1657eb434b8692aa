// Package repository implements MySQL persistence for protections,
// history, notification fan-out and the user/manager directory.  The
// sentinel errors below let handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateUser is returned when a user insert collides with an
// existing account (the Telegram id is unique).  Handlers should
// translate this into an HTTP 409 response.
var ErrDuplicateUser = errors.New("duplicate user")

// ErrDuplicateName is returned when a roster insert or rename collides
// with an existing manager name.  Handlers should translate this into
// an HTTP 409 response.
var ErrDuplicateName = errors.New("duplicate name")

// ErrHasProtections is returned when deleting a manager who still owns
// protections and no transfer target was supplied.
var ErrHasProtections = errors.New("manager still owns protections")
