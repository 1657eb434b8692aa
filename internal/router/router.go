package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/aquafloor/projectguard/internal/handler"
	"github.com/aquafloor/projectguard/internal/middleware"
	"github.com/aquafloor/projectguard/internal/model"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
	Auth       *handler.AuthHandler
	Protection *handler.ProtectionHandler
	Admin      *handler.AdminHandler
	User       *handler.UserHandler
	Catalog    *handler.CatalogHandler
	Telegram   *handler.TelegramHandler
}

// Register wires all routes on the provided Echo instance.  mutating
// is the rate-limit middleware applied to write endpoints; pass a
// pass-through middleware to disable limiting.
func Register(e *echo.Echo, h Handlers, jwtSecret string, mutating echo.MiddlewareFunc) {
	// Unauthenticated surface: health probes, reference data and the
	// two login paths.
	e.GET("/healthz", handler.Health)
	e.GET("/api/ping", handler.Ping)
	e.GET("/api/skus", h.Catalog.List)
	e.GET("/api/managers", h.Admin.PublicManagers)
	e.POST("/api/auth/telegram", h.Auth.TelegramLogin, mutating)
	e.POST("/api/auth/login", h.Auth.PasswordLogin, mutating)

	// The bot webhook authenticates by Telegram id inside the handler,
	// not by bearer token.
	e.POST("/api/tg/callback", h.Telegram.Callback)

	// Everything below requires a valid access token.
	api := e.Group("/api")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.RequireRole(model.RoleManager, model.RoleAssistant, model.RoleAdmin, model.RoleSuperadmin))

	api.GET("/me", h.Auth.Me)

	api.GET("/protections", h.Protection.List)
	api.GET("/protections/:id", h.Protection.Get)
	api.POST("/protections", h.Protection.Create, mutating)
	api.POST("/protections/pending", h.Protection.CreatePending, mutating)
	api.POST("/protections/check-duplicate", h.Protection.CheckDuplicate)
	api.PUT("/protections/:id", h.Protection.Edit, mutating)
	api.POST("/protections/:id/extend", h.Protection.Extend, mutating)
	api.POST("/protections/:id/request-extend", h.Protection.RequestExtend, mutating)
	api.POST("/protections/:id/success", h.Protection.Success, mutating)
	api.POST("/protections/:id/close", h.Protection.Close, mutating)
	api.DELETE("/protections/:id", h.Protection.Delete, mutating)

	api.GET("/history", h.Protection.ListHistory)
	api.GET("/stats", h.Protection.Stats)

	// Review and back-office surface.
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin, model.RoleSuperadmin))

	admin.POST("/protections/:id/approve", h.Admin.Approve, mutating)
	admin.POST("/protections/:id/reject", h.Admin.Reject, mutating)
	admin.POST("/protections/:id/extend-any", h.Admin.ExtendAny, mutating)
	admin.GET("/extend-requests", h.Admin.ExtendRequests)
	admin.GET("/manager-protections", h.Admin.ManagerProtections)

	admin.GET("/managers", h.Admin.ListManagers)
	admin.POST("/managers", h.Admin.CreateManager, mutating)
	admin.PUT("/managers/:id", h.Admin.RenameManager, mutating)
	admin.DELETE("/managers/:id", h.Admin.DeleteManager, mutating)

	// User administration is superadmin-only.
	users := api.Group("/admin/users")
	users.Use(middleware.RequireRole(model.RoleSuperadmin))
	users.GET("", h.User.List)
	users.POST("", h.User.Create, mutating)
	users.PUT("/:id", h.User.Update, mutating)
	users.DELETE("/:id", h.User.Delete, mutating)
}
