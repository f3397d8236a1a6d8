package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/payment"
)

const requestTimeout = 15 * time.Second

var (
	paymentService *payment.Service
	paymentRepos   *repository.Repositories
	clock          payment.Clock = payment.SystemClock{}
	validate                     = validator.New()
)

// InitializePaymentController wires the handlers to a payment service. It
// must run before any route is served.
func InitializePaymentController(svc *payment.Service, repos *repository.Repositories) {
	paymentService = svc
	paymentRepos = repos
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// validationFields maps failing fields to the tag that rejected them.
func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return fields
}

// GetClientIP determines the client IP considering Cloudflare and proxies.
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return c.IP()
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
