package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/localbiz/bizhub/internal/pkg/usercontext"
)

func deny(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// RequireAPISessionAuth answers 401 JSON unless the session belongs to a user.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return deny(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}
	return c.Next()
}

// RequireAdmin answers 401 for visitors and 403 for non-admin users.
func RequireAdmin(c *fiber.Ctx) error {
	switch uc := usercontext.GetUserContext(c); {
	case !uc.IsLoggedIn:
		return deny(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	case !uc.IsAdmin:
		return deny(c, fiber.StatusForbidden, "forbidden", "admin only")
	}
	return c.Next()
}
