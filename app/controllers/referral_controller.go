package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/localbiz/bizhub/internal/pkg/payment"
	"github.com/localbiz/bizhub/internal/pkg/usercontext"
)

type withdrawRequest struct {
	Amount string `json:"amount" form:"amount" validate:"required,numeric"`
}

func HandleReferralBalance(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	w, err := paymentService.Commission.Balance(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("[Referral] balance for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	return c.JSON(fiber.Map{
		"balance":         w.Balance.StringFixed(2),
		"total_earned":    w.TotalEarned.StringFixed(2),
		"total_withdrawn": w.TotalWithdrawn.StringFixed(2),
	})
}

// HandleReferralWithdraw debits the caller's commission wallet.
func HandleReferralWithdraw(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": validationFields(err)})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": fiber.Map{"amount": "numeric"}})
	}

	ctx, cancel := requestContext()
	defer cancel()

	entry, err := paymentService.Commission.Withdraw(ctx, userCtx.UserID, amount)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidAmount):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_amount"})
		case errors.Is(err, payment.ErrInsufficientFunds):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "insufficient_funds"})
		default:
			log.Errorf("[Referral] withdraw for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "withdraw_failed"})
		}
	}
	return c.JSON(fiber.Map{
		"amount":  entry.Amount.Neg().StringFixed(2),
		"balance": entry.BalanceAfter.StringFixed(2),
	})
}
