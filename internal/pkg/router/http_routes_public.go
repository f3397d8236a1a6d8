package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/localbiz/bizhub/app/controllers"
)

// registerPublicRoutes installs routes reached by gateways and by payers
// returning from a checkout. Neither carries a CSRF token.
func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Post("/webhooks/:gateway", controllers.HandleGatewayWebhook)
	app.Get("/payment/:gateway/callback", controllers.HandlePaymentCallback)
	app.Get("/payment/gateways", controllers.HandleGatewayList)
	app.Get("/payment/status/:reference", controllers.HandlePaymentStatus)
}
