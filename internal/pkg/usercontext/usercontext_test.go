package usercontext

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name  string
		uc    UserContext
		owner uint
		want  bool
	}{
		{"anonymous", UserContext{}, 7, false},
		{"owner", UserContext{UserID: 7, IsLoggedIn: true}, 7, true},
		{"other user", UserContext{UserID: 8, IsLoggedIn: true}, 7, false},
		{"admin", UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true}, 7, true},
		{"unowned record", UserContext{UserID: 7, IsLoggedIn: true}, 0, false},
		{"stale admin flag without login", UserContext{IsAdmin: true}, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.uc.CanAccess(tt.owner))
		})
	}
}

func TestSetAndGetUserContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Equal(t, UserContext{}, GetUserContext(c))
		assert.False(t, IsLoggedIn(c))

		SetUserContext(c, UserContext{UserID: 3, Username: "ada", IsLoggedIn: true, IsAdmin: true})
		assert.True(t, IsLoggedIn(c))
		assert.True(t, IsAdmin(c))
		assert.Equal(t, uint(3), GetUserContext(c).UserID)
		assert.Equal(t, true, c.Locals(KeyFromProtected))
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
