package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquafloor/projectguard/internal/model"
)

func TestBuildUserHashesPassword(t *testing.T) {
	u, err := buildUser(createUserRequest{
		TelegramID: 123,
		FirstName:  "Ivanov",
		Role:       model.RoleManager,
		Password:   "hunter2",
	}, bcrypt.MinCost)
	require.NoError(t, err)

	require.NotEmpty(t, u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2")))
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBuildUserDefaults(t *testing.T) {
	u, err := buildUser(createUserRequest{
		FirstName: "  Petrova ",
		Username:  " petrova ",
		GroupTag:  " north ",
	}, bcrypt.MinCost)
	require.NoError(t, err)

	assert.Equal(t, model.RoleManager, u.Role)
	assert.Equal(t, "Petrova", u.FirstName)
	assert.Equal(t, "petrova", u.Username)
	assert.Equal(t, "north", u.GroupTag)
	assert.Zero(t, u.TelegramID)
	assert.Empty(t, u.PasswordHash)
}

func TestBuildUserAssistantKeepsManagerLink(t *testing.T) {
	managerID := uint64(7)
	u, err := buildUser(createUserRequest{
		FirstName: "Sidorov",
		Role:      model.RoleAssistant,
		ManagerID: &managerID,
	}, bcrypt.MinCost)
	require.NoError(t, err)

	require.NotNil(t, u.ManagerID)
	assert.Equal(t, uint64(7), *u.ManagerID)
}

func TestBuildUserRejectsUnknownRole(t *testing.T) {
	_, err := buildUser(createUserRequest{FirstName: "Ivanov", Role: "owner"}, bcrypt.MinCost)
	assert.EqualError(t, err, "unknown role")
}

func TestBuildUserRequiresFirstName(t *testing.T) {
	_, err := buildUser(createUserRequest{Role: model.RoleManager}, bcrypt.MinCost)
	assert.EqualError(t, err, "first_name is required")
}
