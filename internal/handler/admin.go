package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/approval"
	"github.com/aquafloor/projectguard/internal/engine"
	"github.com/aquafloor/projectguard/internal/repository"
)

// AdminHandler serves the review and back-office endpoints.  Role
// middleware guarantees only admins and superadmins reach them.
type AdminHandler struct {
	Engine      *engine.Engine
	Workflow    *approval.Workflow
	Protections *repository.ProtectionRepo
	History     *repository.HistoryRepo
	Managers    *repository.ManagerRepo
}

// NewAdminHandler constructs an AdminHandler.  All dependencies must
// be non-nil.
func NewAdminHandler(eng *engine.Engine, wf *approval.Workflow, protections *repository.ProtectionRepo, history *repository.HistoryRepo, managers *repository.ManagerRepo) *AdminHandler {
	if eng == nil || wf == nil || protections == nil || history == nil || managers == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: eng, Workflow: wf, Protections: protections, History: history, Managers: managers}
}

// Approve handles POST /api/admin/protections/:id/approve.  The
// workflow commits the transition and then reconciles every fanned-out
// review message.
func (h *AdminHandler) Approve(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	p, err := h.Workflow.Approve(c.Request().Context(), id)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Reject handles POST /api/admin/protections/:id/reject.  A reason is
// required and lands in the audit trail.
func (h *AdminHandler) Reject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Workflow.Reject(c.Request().Context(), id, body.Reason)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ExtendAny handles POST /api/admin/protections/:id/extend-any: an
// admin extension on any manager's protection, quota-free.
func (h *AdminHandler) ExtendAny(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Days int `json:"days"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Days <= 0 {
		body.Days = engine.DefaultExtendDays
	}
	p, err := h.Engine.Extend(c.Request().Context(), id, body.Days, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ExtendRequests handles GET /api/admin/extend-requests: the queue of
// manager escalations still awaiting an admin grant.
func (h *AdminHandler) ExtendRequests(c echo.Context) error {
	reqs, err := h.History.ExtendRequests(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, reqs)
}

// ManagerProtections handles GET /api/admin/manager-protections: all
// protections of one manager, review-first ordering.
func (h *AdminHandler) ManagerProtections(c echo.Context) error {
	manager := c.QueryParam("manager")
	if manager == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "manager is required"})
	}
	list, err := h.Protections.ListByManager(c.Request().Context(), manager)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, list)
}

// PublicManagers handles GET /api/managers: the bare roster the login
// and create forms populate their dropdowns from.
func (h *AdminHandler) PublicManagers(c echo.Context) error {
	list, err := h.Managers.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, list)
}

// ListManagers handles GET /api/admin/managers with per-status counts.
func (h *AdminHandler) ListManagers(c echo.Context) error {
	roster, err := h.Managers.ListWithCounts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, roster)
}

// CreateManager handles POST /api/admin/managers.
func (h *AdminHandler) CreateManager(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	m, err := h.Managers.Create(c.Request().Context(), body.Name)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "manager already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, m)
}

// RenameManager handles PUT /api/admin/managers/:id.  The rename
// cascades into existing protection rows so listings stay consistent.
func (h *AdminHandler) RenameManager(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if err := h.Managers.Rename(c.Request().Context(), id, body.Name); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "manager not found"})
		case errors.Is(err, repository.ErrDuplicateName):
			return c.JSON(http.StatusConflict, echo.Map{"error": "manager already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "renamed"})
}

// DeleteManager handles DELETE /api/admin/managers/:id.  When the
// manager still owns protections a transfer_to target is mandatory.
func (h *AdminHandler) DeleteManager(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		TransferTo *uint64 `json:"transfer_to"`
	}
	_ = c.Bind(&body)
	if err := h.Managers.Delete(c.Request().Context(), id, body.TransferTo); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "manager not found"})
		case errors.Is(err, repository.ErrHasProtections):
			return c.JSON(http.StatusConflict, echo.Map{"error": "manager has protections; transfer_to is required"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
