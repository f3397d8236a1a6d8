package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/localbiz/bizhub/internal/pkg/metrics/counter"
	"github.com/localbiz/bizhub/internal/pkg/payment"
)

// HandleGatewayWebhook receives signed gateway notifications. Non-200 answers
// make the gateway redeliver, so only storage failures return 500.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	slug := c.Params("gateway")
	rawBody := append([]byte(nil), c.BodyRaw()...)
	header := func(key string) string { return c.Get(key) }

	ctx, cancel := requestContext()
	defer cancel()

	res, err := paymentService.Reconciler.HandleWebhook(ctx, slug, rawBody, header)
	countWebhook(ctx, slug, res, err)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownGateway):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_gateway"})
		case errors.Is(err, payment.ErrInvalidSignature):
			log.Warnf("[Webhook] invalid %s signature from %s", slug, GetClientIP(c))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, payment.ErrMalformedEvent):
			log.Warnf("[Webhook] malformed %s event: %v", slug, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		default:
			log.Errorf("[Webhook] %s processing failed: %v", slug, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
		}
	}

	body := fiber.Map{"status": res.Status}
	if res.Duplicate {
		body["duplicate"] = true
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

func countWebhook(ctx context.Context, slug string, res *payment.WebhookResult, err error) {
	outcome := counter.WebhookAccepted
	switch {
	case errors.Is(err, payment.ErrUnknownGateway):
		// unknown slugs would let callers grow the hash without bound
		return
	case errors.Is(err, payment.ErrInvalidSignature), errors.Is(err, payment.ErrMalformedEvent):
		outcome = counter.WebhookRejected
	case err != nil:
		return
	case res.Duplicate:
		outcome = counter.WebhookDuplicate
	case res.Status == payment.WebhookStatusIgnored:
		outcome = counter.WebhookIgnored
	}
	if cerr := counter.AddWebhook(ctx, slug, outcome); cerr != nil {
		log.Warnf("[Webhook] count %s delivery: %v", slug, cerr)
	}
}
