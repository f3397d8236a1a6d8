package router

import (
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Config carries the shared infrastructure routes depend on.
type Config struct {
	// LimiterStorage backs the rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	// LimiterMax is the number of requests per client per minute on
	// payment-starting routes.
	LimiterMax int
}

func InstallRouter(app *fiber.App, cfg Config) {
	// The UserContext middleware is installed by the HTTP router and must
	// run before the session-protected groups.
	setup(app, NewHttpRouter(cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
