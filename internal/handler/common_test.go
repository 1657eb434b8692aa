package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/repository"
)

func claimedContext(role, name string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("role", role)
	c.Set("user_name", name)
	return c
}

func TestOwnGuard(t *testing.T) {
	p := &model.Protection{ID: 3, Manager: "Ivanov"}

	assert.NoError(t, ownGuard(claimedContext(model.RoleManager, "Ivanov"), p))
	assert.NoError(t, ownGuard(claimedContext(model.RoleAdmin, "Smirnov"), p))
	assert.NoError(t, ownGuard(claimedContext(model.RoleSuperadmin, "Smirnov"), p))

	err := ownGuard(claimedContext(model.RoleManager, "Petrova"), p)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestActorFor(t *testing.T) {
	assert.Equal(t, model.ActorManager, actorFor(model.RoleManager))
	assert.Equal(t, model.ActorManager, actorFor(model.RoleAssistant))
	assert.Equal(t, model.ActorAdmin, actorFor(model.RoleAdmin))
	assert.Equal(t, model.ActorAdmin, actorFor(model.RoleSuperadmin))
	assert.Equal(t, model.ActorSystem, actorFor(""))
}
