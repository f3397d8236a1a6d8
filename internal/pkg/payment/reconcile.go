package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

const (
	WebhookStatusSuccess = "success"
	WebhookStatusIgnored = "ignored"
)

// WebhookResult tells the controller what to answer. Every result maps to
// HTTP 200; errors carry the non-200 cases.
type WebhookResult struct {
	Status    string
	EventID   uint
	Duplicate bool
	Reason    string
}

// Reconciler turns gateway notifications and return callbacks into
// activations.
type Reconciler struct {
	repos      *repository.Repositories
	registry   *gateway.Registry
	ledger     *Ledger
	activator  *Activator
	commission *CommissionService
	observer   Observer
	cfg        Config
}

func NewReconciler(
	repos *repository.Repositories,
	registry *gateway.Registry,
	ledger *Ledger,
	activator *Activator,
	commission *CommissionService,
	observer Observer,
	cfg Config,
) *Reconciler {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Reconciler{
		repos:      repos,
		registry:   registry,
		ledger:     ledger,
		activator:  activator,
		commission: commission,
		observer:   observer,
		cfg:        cfg,
	}
}

// HandleWebhook verifies, records and applies one webhook delivery. Invalid
// signatures and malformed bodies are rejected before anything is stored.
func (r *Reconciler) HandleWebhook(ctx context.Context, slug string, body []byte, header func(string) string) (*WebhookResult, error) {
	adapter, ok := r.registry.Get(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, slug)
	}
	slug = adapter.Slug()

	if r.cfg.DebugLog {
		log.Debugf("[Webhook] %s payload: %s", slug, RedactPayload(body))
	}

	if !adapter.Verify(body, header) {
		return nil, ErrInvalidSignature
	}

	ev, err := adapter.ParseEvent(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	stored, alreadyProcessed, err := r.ledger.RecordIfNew(ctx, slug, ev.ID, ev.Type, ev.Reference, body, true)
	if err != nil {
		return nil, err
	}
	if alreadyProcessed {
		log.Infof("[Webhook] %s event %s already processed", slug, stored.EventID)
		return &WebhookResult{Status: WebhookStatusSuccess, EventID: stored.ID, Duplicate: true}, nil
	}
	r.observer.WebhookRecorded(ctx, stored)

	return r.process(ctx, stored, ev)
}

// RetryEvent re-runs a stored event that failed earlier. Processed events are
// reported as duplicates and left alone.
func (r *Reconciler) RetryEvent(ctx context.Context, eventID uint) (*WebhookResult, error) {
	stored, err := r.ledger.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if stored.IsProcessed() {
		return &WebhookResult{Status: WebhookStatusSuccess, EventID: stored.ID, Duplicate: true}, nil
	}

	adapter, ok := r.registry.Get(stored.Gateway)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, stored.Gateway)
	}
	ev, err := adapter.ParseEvent([]byte(stored.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if stored.Status == models.WebhookStatusFailed {
		if err := r.ledger.IncrementRetry(ctx, stored.ID); err != nil {
			return nil, fmt.Errorf("bump webhook retry: %w", err)
		}
	}
	log.Infof("[Webhook] retrying %s event %s", stored.Gateway, stored.EventID)
	return r.process(ctx, stored, ev)
}

func (r *Reconciler) process(ctx context.Context, stored *models.WebhookEvent, ev *gateway.Event) (*WebhookResult, error) {
	result := &WebhookResult{Status: WebhookStatusSuccess, EventID: stored.ID}

	if ev.Outcome == gateway.OutcomeUnhandled {
		if err := r.ledger.MarkProcessed(ctx, stored.ID); err != nil {
			return nil, fmt.Errorf("mark webhook processed: %w", err)
		}
		result.Status = WebhookStatusIgnored
		result.Reason = "unhandled event type"
		return result, nil
	}

	t, err := r.findTransaction(ctx, ev.Reference, ev.GatewayReference)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Warnf("[Webhook] %s event %s references unknown transaction %q", stored.Gateway, stored.EventID, ev.Reference)
			return r.ignore(ctx, stored, err)
		}
		return nil, r.fail(ctx, stored, err)
	}
	if t.PaymentMethod != stored.Gateway {
		log.Warnf("[Webhook] %s event %s targets %s transaction %s", stored.Gateway, stored.EventID, t.PaymentMethod, t.Reference)
		return r.ignore(ctx, stored, fmt.Errorf("%w: transaction paid via %s", ErrGatewayMismatch, t.PaymentMethod))
	}

	switch ev.Outcome {
	case gateway.OutcomeFailure:
		reason := strings.TrimSpace(ev.Message)
		if reason == "" {
			reason = "payment failed at gateway"
		}
		if _, err := r.activator.FailTransaction(ctx, t.ID, reason); err != nil {
			if errors.Is(err, ErrAlreadyFinal) {
				return r.ignore(ctx, stored, err)
			}
			return nil, r.fail(ctx, stored, err)
		}

	case gateway.OutcomeSuccess:
		if err := checkAmount(t, ev.Amount, ev.Currency); err != nil {
			log.Warnf("[Webhook] %s event %s for %s rejected: %v", stored.Gateway, stored.EventID, t.Reference, err)
			return r.ignore(ctx, stored, err)
		}
		if err := r.activate(ctx, t); err != nil {
			if errors.Is(err, ErrAlreadyFinal) {
				log.Warnf("[Webhook] %s reported success for failed transaction %s", stored.Gateway, t.Reference)
				return r.ignore(ctx, stored, err)
			}
			return nil, r.fail(ctx, stored, err)
		}
	}

	if err := r.ledger.MarkProcessed(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("mark webhook processed: %w", err)
	}
	return result, nil
}

// HandleCallback confirms a payment with the gateway's API after the payer is
// sent back to us. The callback's own parameters are never trusted.
func (r *Reconciler) HandleCallback(ctx context.Context, slug, reference string) (*models.Transaction, error) {
	adapter, ok := r.registry.Get(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, slug)
	}
	t, err := r.findTransaction(ctx, reference, "")
	if err != nil {
		return nil, err
	}
	if t.PaymentMethod != adapter.Slug() {
		return nil, ErrTransactionNotFound
	}
	if !t.IsPending() {
		return t, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.GatewayTimeout)
	defer cancel()
	v, err := adapter.VerifyTransaction(callCtx, t.Reference)
	if err != nil {
		log.Errorf("[Callback] %s verify %s: %v", adapter.Slug(), t.Reference, err)
		return t, fmt.Errorf("%w: %v", ErrVerificationError, err)
	}

	switch v.Outcome {
	case gateway.OutcomeSuccess:
		if err := checkAmount(t, v.Amount, v.Currency); err != nil {
			log.Warnf("[Callback] %s verification for %s rejected: %v", adapter.Slug(), t.Reference, err)
			return t, err
		}
		if err := r.activate(ctx, t); err != nil && !errors.Is(err, ErrAlreadyFinal) {
			return t, err
		}
	case gateway.OutcomeFailure:
		reason := strings.TrimSpace(v.Message)
		if reason == "" {
			reason = "payment failed at gateway"
		}
		if _, err := r.activator.FailTransaction(ctx, t.ID, reason); err != nil && !errors.Is(err, ErrAlreadyFinal) {
			return t, err
		}
	}

	return r.reload(ctx, t)
}

// ConfirmManual completes a pending transaction an operator has matched by
// hand, typically a bank transfer.
func (r *Reconciler) ConfirmManual(ctx context.Context, reference string) (*models.Transaction, error) {
	t, err := r.findTransaction(ctx, reference, "")
	if err != nil {
		return nil, err
	}
	if err := r.activate(ctx, t); err != nil {
		return t, err
	}
	log.Infof("[Payment] transaction %s confirmed manually", t.Reference)
	return r.reload(ctx, t)
}

// activate completes the transaction and, only when this call did the
// completing, pays the referral commission.
func (r *Reconciler) activate(ctx context.Context, t *models.Transaction) error {
	activated, err := r.activator.CompleteAndActivate(ctx, t.ID)
	if err != nil {
		return err
	}
	if activated {
		if err := r.commission.ProcessCustomerCommission(ctx, t.ID); err != nil {
			log.Errorf("[Commission] transaction %s: %v", t.Reference, err)
		}
	}
	return nil
}

// checkAmount rejects confirmations for less than the transaction amount or
// in another currency. A zero amount means the gateway did not report one.
func checkAmount(t *models.Transaction, amount decimal.Decimal, currency string) error {
	if amount.IsPositive() && amount.Round(2).LessThan(t.Amount) {
		return fmt.Errorf("%w: paid %s, expected %s", ErrAmountMismatch, amount.StringFixed(2), t.Amount.StringFixed(2))
	}
	currency = strings.TrimSpace(currency)
	if currency != "" && t.Currency != "" && !strings.EqualFold(currency, t.Currency) {
		return fmt.Errorf("%w: paid in %s, expected %s", ErrAmountMismatch, strings.ToUpper(currency), t.Currency)
	}
	return nil
}

func (r *Reconciler) findTransaction(ctx context.Context, reference, gatewayReference string) (*models.Transaction, error) {
	repo := r.repos.WithContext(ctx).Transaction
	for _, ref := range []string{reference, gatewayReference} {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		t, err := repo.FindByAnyReference(ref)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find transaction: %w", err)
		}
	}
	return nil, ErrTransactionNotFound
}

func (r *Reconciler) reload(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	fresh, err := r.repos.WithContext(ctx).Transaction.GetByID(t.ID)
	if err != nil {
		return t, fmt.Errorf("reload transaction: %w", err)
	}
	return fresh, nil
}

// ignore acknowledges the delivery but records why nothing happened.
func (r *Reconciler) ignore(ctx context.Context, stored *models.WebhookEvent, cause error) (*WebhookResult, error) {
	if err := r.ledger.MarkFailed(ctx, stored.ID, cause); err != nil {
		return nil, fmt.Errorf("mark webhook failed: %w", err)
	}
	return &WebhookResult{Status: WebhookStatusIgnored, EventID: stored.ID, Reason: cause.Error()}, nil
}

func (r *Reconciler) fail(ctx context.Context, stored *models.WebhookEvent, cause error) error {
	if err := r.ledger.MarkFailed(ctx, stored.ID, cause); err != nil {
		log.Errorf("[Webhook] mark event %d failed: %v", stored.ID, err)
	}
	return cause
}
