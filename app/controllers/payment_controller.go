package controllers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/payment"
	"github.com/localbiz/bizhub/internal/pkg/usercontext"
)

type initializePaymentRequest struct {
	Gateway         string `json:"gateway" validate:"required,max=32"`
	Amount          string `json:"amount" validate:"required,numeric"`
	PayableType     string `json:"payable_type" validate:"required,oneof=subscription ad_campaign wallet"`
	PayableID       uint   `json:"payable_id" validate:"required,gt=0"`
	Intent          string `json:"intent" validate:"omitempty,oneof=new_subscription renew_subscription activate_campaign extend_campaign_duration extend_campaign_budget fund_wallet purchase_credits"`
	PlanID          uint   `json:"plan_id"`
	ExtensionDays   int    `json:"extension_days" validate:"omitempty,gt=0,lte=365"`
	ExtensionAmount string `json:"extension_amount" validate:"omitempty,numeric"`
	CreditKind      string `json:"credit_kind" validate:"omitempty,oneof=ad_credits quote_credits"`
	Credits         int    `json:"credits" validate:"omitempty,gt=0,lte=100000"`
}

func (r initializePaymentRequest) intent() (models.ActivationIntent, error) {
	if r.Intent == "" {
		return nil, nil
	}
	meta := models.TransactionMetadata{
		ExtensionDays: r.ExtensionDays,
		CreditKind:    models.CreditKind(r.CreditKind),
		Credits:       r.Credits,
		PlanID:        r.PlanID,
	}
	if r.ExtensionAmount != "" {
		amount, err := decimal.NewFromString(r.ExtensionAmount)
		if err != nil {
			return nil, err
		}
		meta.ExtensionAmount = &amount
	}
	return models.NewActivationIntent(models.IntentKind(r.Intent), meta)
}

// HandlePaymentInitialize starts a payment for the logged-in user.
func HandlePaymentInitialize(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req initializePaymentRequest
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
	payable, err := models.NewPayable(models.PayableKind(req.PayableType), req.PayableID)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": fiber.Map{"payable_type": "oneof"}})
	}
	intent, err := req.intent()
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": fiber.Map{"intent": err.Error()}})
	}

	user, err := paymentRepos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		log.Errorf("[Payment] load user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	res := paymentService.Initiator.Initialize(ctx, payment.InitRequest{
		User:        payment.Payer{ID: user.ID, Email: user.Email, Name: user.Name, IsAdmin: user.IsAdmin()},
		Amount:      amount,
		GatewaySlug: req.Gateway,
		Payable:     payable,
		Intent:      intent,
	})
	return writeResult(c, res)
}

func writeResult(c *fiber.Ctx, res payment.Result) error {
	switch r := res.(type) {
	case payment.Redirect:
		return c.JSON(fiber.Map{"type": r.Kind(), "url": r.URL, "reference": r.Reference})
	case payment.BankTransferInstructions:
		return c.JSON(fiber.Map{"type": r.Kind(), "instructions": r.Text, "reference": r.Reference})
	case payment.Success:
		return c.JSON(fiber.Map{"type": r.Kind(), "message": r.Message, "reference": r.Reference})
	case payment.Failed:
		body := fiber.Map{"type": r.Kind(), "message": r.Message}
		if r.Reference != "" {
			body["reference"] = r.Reference
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unknown_result"})
	}
}

// callbackReference picks our reference from the parameters each gateway
// appends to the return URL.
func callbackReference(c *fiber.Ctx) string {
	for _, key := range []string{"reference", "trxref", "tx_ref", "order_id"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	return ""
}

// HandlePaymentCallback confirms the payment with the gateway when the payer
// returns, then redirects to the status page.
func HandlePaymentCallback(c *fiber.Ctx) error {
	slug := c.Params("gateway")
	reference := callbackReference(c)
	if reference == "" {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Missing payment reference."}).Redirect("/")
	}
	statusURL := "/payment/status/" + url.PathEscape(reference)

	ctx, cancel := requestContext()
	defer cancel()

	t, err := paymentService.Reconciler.HandleCallback(ctx, slug, reference)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownGateway), errors.Is(err, payment.ErrTransactionNotFound):
			return flash.WithError(c, fiber.Map{"type": "error", "message": "We could not find this payment."}).Redirect("/")
		case errors.Is(err, payment.ErrVerificationError):
			return flash.WithError(c, fiber.Map{"type": "error", "message": "We could not confirm your payment yet. We will update it as soon as the provider confirms."}).Redirect(statusURL)
		default:
			log.Errorf("[Callback] %s reference %s: %v", slug, reference, err)
			return flash.WithError(c, fiber.Map{"type": "error", "message": "Your payment could not be confirmed. Please contact support."}).Redirect(statusURL)
		}
	}

	statusURL = "/payment/status/" + url.PathEscape(t.Reference)
	switch t.Status {
	case models.TransactionStatusCompleted:
		return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Payment successful."}).Redirect(statusURL)
	case models.TransactionStatusFailed:
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Your payment failed."}).Redirect(statusURL)
	default:
		return flash.WithSuccess(c, fiber.Map{"type": "info", "message": "Your payment is being processed."}).Redirect(statusURL)
	}
}

// HandlePaymentStatus reports a transaction to its owner or an admin.
func HandlePaymentStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	t, err := paymentRepos.Transaction.GetByReference(strings.TrimSpace(c.Params("reference")))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("[Payment] load status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	if !userCtx.CanAccess(t.UserID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	body := fiber.Map{
		"reference":      t.Reference,
		"status":         t.Status,
		"amount":         t.Amount.StringFixed(2),
		"currency":       t.Currency,
		"payment_method": t.PaymentMethod,
		"payable_type":   t.PayableType,
		"payable_id":     t.PayableID,
		"paid_at":        formatTimePtr(t.PaidAt),
	}
	if msg, ok := flash.Get(c)["message"]; ok {
		body["message"] = msg
	}
	return c.JSON(body)
}
