package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/repository"
)

// UserHandler serves the superadmin user-administration endpoints.
// BcryptCost is the work factor applied when a created account carries
// a password for the login fallback.
type UserHandler struct {
	Users      *repository.UserRepo
	BcryptCost int
}

// NewUserHandler constructs a UserHandler.  Users must be non-nil.
func NewUserHandler(users *repository.UserRepo, bcryptCost int) *UserHandler {
	if users == nil {
		panic("nil user repository passed to NewUserHandler")
	}
	return &UserHandler{Users: users, BcryptCost: bcryptCost}
}

// createUserRequest is the POST /api/admin/users body.  The Telegram
// id may be zero for accounts provisioned before their first widget
// login; the password is optional and enables the username/password
// fallback when set.
type createUserRequest struct {
	TelegramID int64   `json:"tg_id"`
	Username   string  `json:"tg_username"`
	FirstName  string  `json:"first_name"`
	Role       string  `json:"role"`
	ManagerID  *uint64 `json:"manager_id"`
	GroupTag   string  `json:"group_tag"`
	Region     string  `json:"region"`
	Password   string  `json:"password"`
}

// buildUser validates a creation request and assembles the row to
// insert, hashing the password when one is supplied.
func buildUser(req createUserRequest, bcryptCost int) (*model.User, error) {
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = model.RoleManager
	}
	switch role {
	case model.RoleManager, model.RoleAssistant, model.RoleAdmin, model.RoleSuperadmin:
	default:
		return nil, errors.New("unknown role")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return nil, errors.New("first_name is required")
	}
	u := &model.User{
		TelegramID: req.TelegramID,
		Username:   strings.TrimSpace(req.Username),
		FirstName:  strings.TrimSpace(req.FirstName),
		Role:       role,
		ManagerID:  req.ManagerID,
		GroupTag:   strings.TrimSpace(req.GroupTag),
		Region:     strings.TrimSpace(req.Region),
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	return u, nil
}

// Create handles POST /api/admin/users.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	u, err := buildUser(req, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Users.Create(c.Request().Context(), u); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "user already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, u)
}

// List handles GET /api/admin/users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, users)
}

// Update handles PUT /api/admin/users/:id.  Only provided fields are
// patched; role, group tag, manager link and region are allowed.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Role      *string `json:"role"`
		GroupTag  *string `json:"group_tag"`
		ManagerID *uint64 `json:"manager_id"`
		Region    *string `json:"region"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	patch := repository.UserPatch{
		Role:      body.Role,
		GroupTag:  body.GroupTag,
		ManagerID: body.ManagerID,
		Region:    body.Region,
	}
	if err := h.Users.Update(c.Request().Context(), id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
}

// Delete handles DELETE /api/admin/users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
