package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

// Payer is the user starting a payment.
type Payer struct {
	ID      uint
	Email   string
	Name    string
	IsAdmin bool
}

// InitRequest asks to pay Amount for Payable through GatewaySlug. A nil
// Intent uses the payable's default.
type InitRequest struct {
	User        Payer
	Amount      decimal.Decimal
	GatewaySlug string
	Payable     models.Payable
	Intent      models.ActivationIntent
}

// GatewayLookup resolves the operator switchboard row for a slug.
type GatewayLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.PaymentGateway, error)
}

type repoGatewayLookup struct {
	repos *repository.Repositories
}

func (l repoGatewayLookup) GetBySlug(ctx context.Context, slug string) (*models.PaymentGateway, error) {
	return l.repos.WithContext(ctx).PaymentGateway.GetBySlug(slug)
}

// Initiator starts payments. It never returns an error: every failure becomes
// a Failed result and the details go to the log.
type Initiator struct {
	repos      *repository.Repositories
	registry   *gateway.Registry
	gateways   GatewayLookup
	activator  *Activator
	commission *CommissionService
	cfg        Config
}

func NewInitiator(repos *repository.Repositories, registry *gateway.Registry, gateways GatewayLookup, activator *Activator, commission *CommissionService, cfg Config) *Initiator {
	if gateways == nil {
		gateways = repoGatewayLookup{repos: repos}
	}
	return &Initiator{
		repos:      repos,
		registry:   registry,
		gateways:   gateways,
		activator:  activator,
		commission: commission,
		cfg:        cfg,
	}
}

// NewReference returns a fresh internal transaction reference.
func NewReference() string {
	return "TXN-" + strings.ToUpper(uuid.NewString())
}

func (s *Initiator) Initialize(ctx context.Context, req InitRequest) Result {
	slug := strings.ToLower(strings.TrimSpace(req.GatewaySlug))

	if req.Amount.LessThan(s.cfg.MinAmount) || !req.Amount.IsPositive() {
		return Failed{Message: fmt.Sprintf("The minimum payment amount is %s %s.", s.cfg.MinAmount.StringFixed(2), s.cfg.Currency)}
	}
	if req.Payable == nil {
		return Failed{Message: "Please choose what you are paying for."}
	}
	intent := req.Intent
	if intent == nil {
		intent = models.DefaultIntentFor(req.Payable.Kind())
	}
	if !models.IntentAppliesTo(intent, req.Payable.Kind()) {
		return Failed{Message: "This payment option is not available for the selected item."}
	}

	repos := s.repos.WithContext(ctx)
	businessID, err := s.resolveBusinessID(repos, req.Payable)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Payment] resolve payable %s #%d: %v", req.Payable.Kind(), req.Payable.PayableID(), err)
		}
		return Failed{Message: "The selected item could not be found."}
	}
	business, err := repos.Business.GetByID(businessID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Payment] load business %d: %v", businessID, err)
		}
		return Failed{Message: "The selected item could not be found."}
	}
	if business.OwnerID != req.User.ID && !req.User.IsAdmin {
		return Failed{Message: "You can only pay for your own business."}
	}

	gw, err := s.gateways.GetBySlug(ctx, slug)
	if err != nil || gw == nil || !gw.IsUsable() {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Payment] load gateway %q: %v", slug, err)
		}
		return Failed{Message: "This payment method is currently unavailable."}
	}

	var adapter gateway.Adapter
	if slug != models.GatewayWallet {
		a, ok := s.registry.Get(slug)
		if !ok {
			log.Warnf("[Payment] gateway %q is enabled but has no adapter", slug)
			return Failed{Message: "This payment method is currently unavailable."}
		}
		adapter = a
	}

	if slug == models.GatewayWallet {
		if wp, ok := req.Payable.(models.WalletPayable); ok {
			if w, err := repos.Wallet.GetByID(wp.ID); err == nil && w.BusinessID == businessID {
				return Failed{Message: "A wallet cannot be funded from itself."}
			}
		}
	}

	t := &models.Transaction{
		UserID:        req.User.ID,
		BusinessID:    businessID,
		Reference:     NewReference(),
		Amount:        req.Amount.Round(2),
		Currency:      s.cfg.Currency,
		PaymentMethod: slug,
		Status:        models.TransactionStatusPending,
		Metadata:      datatypes.NewJSONType(models.TransactionMetadata{}),
	}
	t.SetPayable(req.Payable)
	t.SetActivationIntent(intent)
	if err := repos.Transaction.Create(t); err != nil {
		log.Errorf("[Payment] create transaction: %v", err)
		return Failed{Message: "We could not start your payment. Please try again."}
	}

	if slug == models.GatewayWallet {
		return s.payFromWallet(ctx, t)
	}
	return s.startGatewayCheckout(ctx, t, adapter, gw, req.User)
}

func (s *Initiator) resolveBusinessID(repos *repository.Repositories, p models.Payable) (uint, error) {
	switch v := p.(type) {
	case models.SubscriptionPayable:
		sub, err := repos.Subscription.GetByID(v.ID)
		if err != nil {
			return 0, err
		}
		return sub.BusinessID, nil
	case models.AdCampaignPayable:
		c, err := repos.AdCampaign.GetByID(v.ID)
		if err != nil {
			return 0, err
		}
		return c.BusinessID, nil
	case models.WalletPayable:
		w, err := repos.Wallet.GetByID(v.ID)
		if err != nil {
			return 0, err
		}
		return w.BusinessID, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedPayable, p)
	}
}

func (s *Initiator) startGatewayCheckout(ctx context.Context, t *models.Transaction, adapter gateway.Adapter, gw *models.PaymentGateway, payer Payer) Result {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	res, err := adapter.Initialize(callCtx, gateway.Checkout{
		Reference:    t.Reference,
		Amount:       t.Amount,
		Currency:     t.Currency,
		Email:        payer.Email,
		CustomerName: payer.Name,
		Description:  fmt.Sprintf("%s payment", strings.ReplaceAll(string(t.PayableType), "_", " ")),
		CallbackURL:  s.callbackURL(gw.Slug, t.Reference),
		Instructions: gw.Instructions,
	})
	if err != nil {
		// The gateway may have created the checkout before the error reached
		// us, so the transaction stays pending for webhook reconciliation.
		log.Errorf("[Payment] %s initialize for %s failed: %v", gw.Slug, t.Reference, err)
		return Failed{Message: "We could not reach the payment provider. Please try again.", Reference: t.Reference}
	}

	if err := s.repos.WithContext(ctx).Transaction.SaveGatewayResult(t.ID, res.GatewayReference, res.Raw); err != nil {
		log.Errorf("[Payment] store gateway response for %s: %v", t.Reference, err)
	}

	if res.Instructions != "" {
		return BankTransferInstructions{Text: res.Instructions, Reference: t.Reference}
	}
	return Redirect{URL: res.RedirectURL, Reference: t.Reference}
}

// payFromWallet debits the paying business's wallet and activates the payable
// in a single database transaction.
func (s *Initiator) payFromWallet(ctx context.Context, t *models.Transaction) Result {
	var completed *models.Transaction
	err := s.repos.InTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := debitWallet(tx, t.BusinessID, t.Amount, t.ID, "Payment "+t.Reference); err != nil {
			return err
		}
		done, err := s.activator.completeAndActivateTx(tx, t.ID)
		if err != nil {
			return err
		}
		completed = done
		return nil
	})
	if err != nil {
		reason := "wallet payment failed"
		msg := "Your wallet payment could not be completed."
		if errors.Is(err, ErrInsufficientFunds) {
			reason = "insufficient wallet balance"
			msg = "Your wallet balance is too low for this payment."
		} else {
			log.Errorf("[Payment] wallet payment %s: %v", t.Reference, err)
		}
		if _, ferr := s.activator.FailTransaction(ctx, t.ID, reason); ferr != nil {
			log.Errorf("[Payment] mark %s failed: %v", t.Reference, ferr)
		}
		return Failed{Message: msg, Reference: t.Reference}
	}

	if completed != nil {
		s.activator.observer.TransactionCompleted(ctx, completed)
		if err := s.commission.ProcessCustomerCommission(ctx, completed.ID); err != nil {
			log.Errorf("[Commission] transaction %s: %v", completed.Reference, err)
		}
	}
	return Success{Message: "Payment successful.", Reference: t.Reference}
}

func (s *Initiator) callbackURL(slug, reference string) string {
	return fmt.Sprintf("%s/payment/%s/callback?reference=%s", s.cfg.PublicURL, url.PathEscape(slug), url.QueryEscape(reference))
}
