package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/localbiz/bizhub/app/controllers"
	"github.com/localbiz/bizhub/internal/pkg/middleware"
)

const defaultLimiterMax = 20

type HttpRouter struct {
	cfg Config
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	protected := h.registerCSRFProtectedRoutes(app)
	h.registerAdminRoutes(protected)
}

func NewHttpRouter(cfg Config) *HttpRouter {
	if cfg.LimiterMax <= 0 {
		cfg.LimiterMax = defaultLimiterMax
	}
	return &HttpRouter{cfg: cfg}
}

// paymentLimiter throttles routes that reach out to gateways or move money.
func (h HttpRouter) paymentLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        h.cfg.LimiterMax,
		Expiration: time.Minute,
		Storage:    h.cfg.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "limiter:payments:" + controllers.GetClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}
