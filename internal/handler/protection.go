package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/approval"
	"github.com/aquafloor/projectguard/internal/engine"
	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/repository"
)

// ProtectionHandler serves the protection lifecycle endpoints.  All
// writes go through the engine; the repository is only consulted for
// read/listing queries the engine does not own.  JWT authentication
// and role validation have already run in middleware.
type ProtectionHandler struct {
	Engine      *engine.Engine
	Workflow    *approval.Workflow
	Protections *repository.ProtectionRepo
	History     *repository.HistoryRepo
}

// NewProtectionHandler constructs a ProtectionHandler.  All
// dependencies must be non-nil.
func NewProtectionHandler(eng *engine.Engine, wf *approval.Workflow, protections *repository.ProtectionRepo, history *repository.HistoryRepo) *ProtectionHandler {
	if eng == nil || wf == nil || protections == nil || history == nil {
		panic("nil dependency passed to NewProtectionHandler")
	}
	return &ProtectionHandler{Engine: eng, Workflow: wf, Protections: protections, History: history}
}

type protectionRequest struct {
	Manager     string          `json:"manager"`
	Client      string          `json:"client"`
	Partner     string          `json:"partner"`
	PartnerCity string          `json:"partner_city"`
	SKU         string          `json:"sku"`
	Items       []model.SKUItem `json:"sku_items"`
	AreaM2      *float64        `json:"area_m2"`
	Last4       string          `json:"last4"`
	ObjectCity  string          `json:"object_city"`
	Address     string          `json:"address"`
	Comment     string          `json:"comment"`
}

// params resolves the acting manager: only admins may create on behalf
// of somebody else, everyone else is pinned to their own name claim.
func (b *protectionRequest) params(c echo.Context) engine.CreateParams {
	manager := b.Manager
	if !isAdmin(currentRole(c)) || manager == "" {
		manager = currentName(c)
	}
	return engine.CreateParams{
		Manager:     manager,
		Client:      b.Client,
		Partner:     b.Partner,
		PartnerCity: b.PartnerCity,
		SKU:         b.SKU,
		Items:       b.Items,
		AreaM2:      b.AreaM2,
		Last4:       b.Last4,
		ObjectCity:  b.ObjectCity,
		Address:     b.Address,
		Comment:     b.Comment,
	}
}

// Create handles POST /api/protections.  The protection goes straight
// to active when the area gate and the duplicate check pass.
func (h *ProtectionHandler) Create(c echo.Context) error {
	var body protectionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Engine.Create(c.Request().Context(), body.params(c))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// CreatePending handles POST /api/protections/pending: small jobs that
// need an admin decision.  The review notice is fanned out before the
// response; a delivery problem is logged but the record stays pending.
func (h *ProtectionHandler) CreatePending(c echo.Context) error {
	var body protectionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Engine.CreatePending(c.Request().Context(), body.params(c))
	if err != nil {
		return engineError(c, err)
	}
	if err := h.Workflow.NotifyPending(c.Request().Context(), p); err != nil {
		log.Printf("protection: pending fan-out for %d failed: %v", p.ID, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List handles GET /api/protections with optional search, manager and
// status filters.  Deleted records stay hidden unless asked for by
// status.  Non-admin callers only ever see their own manager's rows.
func (h *ProtectionHandler) List(c echo.Context) error {
	f := repository.ListFilters{
		Search:  c.QueryParam("search"),
		Manager: c.QueryParam("manager"),
		Status:  c.QueryParam("status"),
	}
	if !isAdmin(currentRole(c)) {
		f.Manager = currentName(c)
	}
	list, err := h.Protections.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /api/protections/:id.
func (h *ProtectionHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	p, err := h.Engine.Get(c.Request().Context(), id)
	if err != nil {
		return engineError(c, err)
	}
	if err := ownGuard(c, p); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, p)
}

// Edit handles PUT /api/protections/:id, replacing the SKU
// composition, area and comment of an active protection.
func (h *ProtectionHandler) Edit(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		SKU     string          `json:"sku"`
		Items   []model.SKUItem `json:"sku_items"`
		AreaM2  *float64        `json:"area_m2"`
		Comment string          `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.guard(c, id); err != nil {
		return err
	}
	p, err := h.Engine.Edit(c.Request().Context(), id, engine.EditParams{
		SKU:     body.SKU,
		Items:   body.Items,
		AreaM2:  body.AreaM2,
		Comment: body.Comment,
	}, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Extend handles POST /api/protections/:id/extend.  Days default to
// the standard self-service grant; the quota applies to non-admins.
func (h *ProtectionHandler) Extend(c echo.Context) error {
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
	if err := h.guard(c, id); err != nil {
		return err
	}
	p, err := h.Engine.Extend(c.Request().Context(), id, body.Days, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// RequestExtend handles POST /api/protections/:id/request-extend: it
// records an escalation for admins without moving the deadline.
func (h *ProtectionHandler) RequestExtend(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Days   int    `json:"days"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.guard(c, id); err != nil {
		return err
	}
	if err := h.Engine.RequestExtend(c.Request().Context(), id, body.Days, body.Reason); err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "requested"})
}

// Success handles POST /api/protections/:id/success.
func (h *ProtectionHandler) Success(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		DocRef string `json:"doc_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.guard(c, id); err != nil {
		return err
	}
	p, err := h.Engine.MarkSuccess(c.Request().Context(), id, body.DocRef, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Close handles POST /api/protections/:id/close.
func (h *ProtectionHandler) Close(c echo.Context) error {
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
	if err := h.guard(c, id); err != nil {
		return err
	}
	p, err := h.Engine.Close(c.Request().Context(), id, body.Reason, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/protections/:id (soft delete).
func (h *ProtectionHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	// DELETE bodies are optional; ignore bind errors.
	_ = c.Bind(&body)
	if body.Reason == "" {
		body.Reason = c.QueryParam("reason")
	}
	if err := h.guard(c, id); err != nil {
		return err
	}
	p, err := h.Engine.Delete(c.Request().Context(), id, body.Reason, actorFor(currentRole(c)))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// CheckDuplicate handles POST /api/protections/check-duplicate: the
// soft variant of the create-time duplicate check, returning every
// match without writing anything.
func (h *ProtectionHandler) CheckDuplicate(c echo.Context) error {
	var body struct {
		SKU    string          `json:"sku"`
		Items  []model.SKUItem `json:"sku_items"`
		AreaM2 *float64        `json:"area_m2"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	matches, err := h.Engine.CheckDuplicates(c.Request().Context(), body.Items, body.AreaM2, body.SKU)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"duplicate": len(matches) > 0,
		"matches":   matches,
	})
}

// ListHistory handles GET /api/history.  With a protection_id query it
// returns that record's full trail, otherwise the recent global feed.
func (h *ProtectionHandler) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()
	if raw := c.QueryParam("protection_id"); raw != "" {
		id, err := pathIDFrom(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid protection_id"})
		}
		entries, err := h.History.ListByProtection(ctx, id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return c.JSON(http.StatusOK, entries)
	}
	entries, err := h.History.ListRecent(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, entries)
}

// Stats handles GET /api/stats with per-manager aggregates.
func (h *ProtectionHandler) Stats(c echo.Context) error {
	stats, err := h.Protections.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, stats)
}

// guard loads the protection and rejects non-admin callers acting on
// somebody else's record.  The engine re-reads under its own lock; the
// extra read here only serves the ownership check.
func (h *ProtectionHandler) guard(c echo.Context, id uint64) error {
	p, err := h.Engine.Get(c.Request().Context(), id)
	if err != nil {
		return engineError(c, err)
	}
	if err := ownGuard(c, p); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return nil
}
