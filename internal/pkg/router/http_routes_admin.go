package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/localbiz/bizhub/app/controllers"
	"github.com/localbiz/bizhub/internal/pkg/middleware"
)

// registerAdminRoutes mounts operator routes below the CSRF-protected group.
func (h HttpRouter) registerAdminRoutes(protected fiber.Router) {
	admin := protected.Group("/admin", middleware.RequireAdmin)
	admin.Get("/payments/stats", controllers.HandleAdminPaymentStats)
	admin.Post("/payments/:reference/confirm", controllers.HandleAdminPaymentConfirm)
	admin.Get("/webhook-events", controllers.HandleAdminWebhookEvents)
	admin.Post("/webhook-events/:id/retry", controllers.HandleAdminWebhookRetry)
	admin.Get("/gateways", controllers.HandleAdminGatewayList)
	admin.Put("/gateways/:slug", controllers.HandleAdminGatewayUpdate)
}
