package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/repository"
	"github.com/aquafloor/projectguard/internal/utils"
)

// loginMaxAge bounds how old a Telegram login payload may be before it
// is considered replayed.
const loginMaxAge = 24 * time.Hour

// AuthHandler issues access tokens for the two supported login paths:
// the Telegram login widget and a username/password fallback.
type AuthHandler struct {
	Users        *repository.UserRepo
	BotToken     string
	JWTSecret    string
	AccessTTLMin int
}

// NewAuthHandler constructs an AuthHandler.  Users must be non-nil.
func NewAuthHandler(users *repository.UserRepo, botToken, jwtSecret string, accessTTLMin int) *AuthHandler {
	if users == nil {
		panic("nil user repository passed to NewAuthHandler")
	}
	return &AuthHandler{
		Users:        users,
		BotToken:     botToken,
		JWTSecret:    jwtSecret,
		AccessTTLMin: accessTTLMin,
	}
}

// TelegramLogin handles POST /api/auth/telegram.  The request body is
// the raw widget payload; its hash field is verified with HMAC-SHA256
// keyed by SHA256(bot token) before any account is touched.  A valid
// payload upserts the user by Telegram id and returns a bearer token.
func (h *AuthHandler) TelegramLogin(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := verifyTelegramAuth(payload, h.BotToken, time.Now().UTC()); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	tgID, err := payloadInt64(payload, "id")
	if err != nil || tgID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid telegram id"})
	}
	username := payloadString(payload, "username")
	firstName := payloadString(payload, "first_name")

	u, err := h.Users.UpsertTelegram(c.Request().Context(), tgID, username, firstName, model.RoleManager)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return h.issueToken(c, u)
}

// PasswordLogin handles POST /api/auth/login for accounts provisioned
// with a password (admin backoffice use).
func (h *AuthHandler) PasswordLogin(c echo.Context) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Username == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}
	u, err := h.Users.GetByUsername(c.Request().Context(), body.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if u.PasswordHash == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issueToken(c, u)
}

// Me handles GET /api/me and returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) issueToken(c echo.Context, u *model.User) error {
	tok, err := utils.NewAccessToken(h.JWTSecret, u.ID, u.Role, u.FirstName, h.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp,
		"user":         u,
	})
}

// verifyTelegramAuth checks the widget payload the way the Bot API
// documents it: every field except hash is joined as "key=value" lines
// in sorted key order and signed with HMAC-SHA256 keyed by the SHA256
// digest of the bot token.  Stale auth_date values are rejected.
func verifyTelegramAuth(payload map[string]interface{}, botToken string, now time.Time) error {
	gotHash := payloadString(payload, "hash")
	if gotHash == "" {
		return errors.New("missing hash")
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+payloadString(payload, k))
	}
	checkString := strings.Join(lines, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return errors.New("invalid signature")
	}

	authDate, err := payloadInt64(payload, "auth_date")
	if err != nil {
		return errors.New("missing auth_date")
	}
	if now.Sub(time.Unix(authDate, 0)) > loginMaxAge {
		return errors.New("login payload expired")
	}
	return nil
}

// payloadString renders a payload value the way it appeared on the
// wire.  JSON numbers decode as float64; integral values must not grow
// a fractional suffix or the check string breaks.
func payloadString(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func payloadInt64(payload map[string]interface{}, key string) (int64, error) {
	switch t := payload[key].(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("missing %s", key)
	}
}
