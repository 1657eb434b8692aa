package handler // package handler contains the HTTP handlers for the API

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/engine"
	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/repository"
)

// getUserID extracts the authenticated user's ID from the context.  The
// JWT middleware stores claims without type conversion, and JSON numbers
// decode as float64, so both numeric forms are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		if v <= 0 {
			return 0, errors.New("invalid user id")
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, errors.New("missing user id")
	}
}

func currentRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

func currentName(c echo.Context) string {
	if s, ok := c.Get("user_name").(string); ok {
		return s
	}
	return ""
}

func isAdmin(role string) bool {
	return role == model.RoleAdmin || role == model.RoleSuperadmin
}

// actorFor maps an authenticated role onto the audit actor recorded
// with state changes.  Assistants act on behalf of their manager; a
// missing role claim falls back to the system actor so the event is
// still attributable.
func actorFor(role string) string {
	if role == "" {
		return model.ActorSystem
	}
	if isAdmin(role) {
		return model.ActorAdmin
	}
	return model.ActorManager
}

func pathID(c echo.Context) (uint64, error) {
	return pathIDFrom(c.Param("id"))
}

func pathIDFrom(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// engineError translates engine and repository errors into HTTP
// responses.  Conflicts carry the colliding record so the client can
// show whose protection blocked the create.
func engineError(c echo.Context, err error) error {
	var (
		verr *engine.ValidationError
		cerr *engine.ConflictError
		qerr *engine.QuotaExceededError
		serr *engine.StateError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Msg})
	case errors.As(err, &cerr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    "duplicate protection",
			"message":  cerr.Error(),
			"existing": cerr.Existing,
		})
	case errors.As(err, &qerr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":        "extension limit reached",
			"extend_count": qerr.Count,
			"needs_admin":  qerr.NeedsAdmin,
		})
	case errors.As(err, &serr):
		return c.JSON(http.StatusConflict, echo.Map{"error": serr.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "protection not found"})
	default:
		c.Logger().Errorf("engine error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// ownGuard rejects non-admin callers acting on another manager's
// protection.  Assistants share their manager's name claim.
func ownGuard(c echo.Context, p *model.Protection) error {
	role := currentRole(c)
	if isAdmin(role) {
		return nil
	}
	if p.Manager != currentName(c) {
		return fmt.Errorf("protection %d belongs to %s: %w", p.ID, p.Manager, repository.ErrForbidden)
	}
	return nil
}
