package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/localbiz/bizhub/internal/pkg/metrics/counter"
	"github.com/localbiz/bizhub/internal/pkg/payment"
	"github.com/localbiz/bizhub/internal/pkg/statistics"
)

var paymentStats *statistics.Service

// SetStatisticsService registers the dashboard statistics source.
func SetStatisticsService(s *statistics.Service) {
	paymentStats = s
}

// HandleAdminPaymentConfirm completes a transaction an operator matched by
// hand, usually a bank transfer.
func HandleAdminPaymentConfirm(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Params("reference"))

	ctx, cancel := requestContext()
	defer cancel()

	t, err := paymentService.Reconciler.ConfirmManual(ctx, reference)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrTransactionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		case errors.Is(err, payment.ErrAlreadyFinal):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "transaction_failed"})
		default:
			log.Errorf("[Admin] confirm %s: %v", reference, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "confirm_failed"})
		}
	}
	return c.JSON(fiber.Map{"reference": t.Reference, "status": t.Status, "paid_at": formatTimePtr(t.PaidAt)})
}

// HandleAdminWebhookEvents lists failed webhook events awaiting a retry.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ctx, cancel := requestContext()
	defer cancel()

	events, err := paymentService.Ledger.ListFailed(ctx, limit)
	if err != nil {
		log.Errorf("[Admin] list failed webhooks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}

	items := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		items = append(items, fiber.Map{
			"id":          e.ID,
			"gateway":     e.Gateway,
			"event_id":    e.EventID,
			"event_type":  e.EventType,
			"reference":   e.Reference,
			"error":       e.ErrorMessage,
			"retry_count": e.RetryCount,
			"created_at":  formatTimePtr(&e.CreatedAt),
		})
	}
	return c.JSON(fiber.Map{"events": items})
}

// HandleAdminWebhookRetry re-runs a failed webhook event.
func HandleAdminWebhookRetry(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	res, err := paymentService.Reconciler.RetryEvent(ctx, uint(id))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrEventNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		case errors.Is(err, payment.ErrUnknownGateway), errors.Is(err, payment.ErrMalformedEvent):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "not_retryable"})
		default:
			log.Errorf("[Admin] retry webhook %d: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "retry_failed"})
		}
	}

	body := fiber.Map{"status": res.Status, "event_id": res.EventID}
	if res.Duplicate {
		body["duplicate"] = true
	}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	return c.JSON(body)
}

// HandleAdminPaymentStats reports the payment dashboard summary and webhook
// delivery counters.
func HandleAdminPaymentStats(c *fiber.Ctx) error {
	if paymentStats == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats_unavailable"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	stats, err := paymentStats.Get(ctx)
	if err != nil {
		log.Errorf("[Admin] payment stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	webhooks, err := counter.WebhookCounts(ctx)
	if err != nil {
		log.Warnf("[Admin] webhook counters: %v", err)
		webhooks = nil
	}
	return c.JSON(fiber.Map{"payments": stats, "webhooks": webhooks})
}
