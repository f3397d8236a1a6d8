package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/localbiz/bizhub/app/controllers"
	"github.com/localbiz/bizhub/internal/pkg/env"
	"github.com/localbiz/bizhub/internal/pkg/middleware"
)

const csrfContextKey = "csrf"

func csrfConfig() csrf.Config {
	return csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		ContextKey:     csrfContextKey,
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "csrf_failed"})
		},
	}
}

// registerCSRFProtectedRoutes installs the session routes. Clients fetch a
// token from GET /csrf and echo it in X-CSRF-Token on every write.
func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) fiber.Router {
	group := app.Group("", cors.New(), csrf.New(csrfConfig()))
	group.Get("/csrf", func(c *fiber.Ctx) error {
		token, _ := c.Locals(csrfContextKey).(string)
		return c.JSON(fiber.Map{"token": token})
	})
	group.Post("/login", controllers.HandleAuthLogin)
	group.Post("/logout", controllers.HandleAuthLogout)

	limit := h.paymentLimiter()
	group.Post("/payments/initialize", middleware.RequireAPISessionAuth, limit, controllers.HandlePaymentInitialize)
	group.Get("/referrals/balance", middleware.RequireAPISessionAuth, controllers.HandleReferralBalance)
	group.Post("/referrals/withdraw", middleware.RequireAPISessionAuth, limit, controllers.HandleReferralWithdraw)
	return group
}
