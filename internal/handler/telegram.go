package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/approval"
	"github.com/aquafloor/projectguard/internal/repository"
)

// defaultRejectReason is recorded when a reviewer taps the reject
// button without supplying a reason through the web surface.
const defaultRejectReason = "rejected by administrator"

// TelegramHandler receives bot webhook updates and routes the
// approve/reject button presses into the approval workflow.
type TelegramHandler struct {
	Workflow *approval.Workflow
	Users    *repository.UserRepo
}

// NewTelegramHandler constructs a TelegramHandler.  Both dependencies
// must be non-nil.
func NewTelegramHandler(wf *approval.Workflow, users *repository.UserRepo) *TelegramHandler {
	if wf == nil || users == nil {
		panic("nil dependency passed to NewTelegramHandler")
	}
	return &TelegramHandler{Workflow: wf, Users: users}
}

type telegramUpdate struct {
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// Callback handles POST /api/tg/callback.  Anything other than a
// well-formed decision press from a known admin is acknowledged and
// dropped; returning non-200 would only make Telegram redeliver it.
func (h *TelegramHandler) Callback(c echo.Context) error {
	var upd telegramUpdate
	if err := c.Bind(&upd); err != nil || upd.CallbackQuery == nil {
		return c.NoContent(http.StatusOK)
	}
	data := upd.CallbackQuery.Data
	verb, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return c.NoContent(http.StatusOK)
	}
	id, err := pathIDFrom(rawID)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}

	ctx := c.Request().Context()
	u, err := h.Users.GetByTelegramID(ctx, upd.CallbackQuery.From.ID)
	if err != nil || !isAdmin(u.Role) {
		log.Printf("telegram: decision %q from unauthorized chat %d ignored", data, upd.CallbackQuery.From.ID)
		return c.NoContent(http.StatusOK)
	}

	switch verb {
	case "approve":
		if _, err := h.Workflow.Approve(ctx, id); err != nil {
			log.Printf("telegram: approve %d failed: %v", id, err)
		}
	case "reject":
		if _, err := h.Workflow.Reject(ctx, id, defaultRejectReason); err != nil {
			log.Printf("telegram: reject %d failed: %v", id, err)
		}
	}
	return c.NoContent(http.StatusOK)
}
