package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
)

// Activator turns a confirmed payment into its domain effect exactly once.
type Activator struct {
	repos    *repository.Repositories
	clock    Clock
	observer Observer
}

func NewActivator(repos *repository.Repositories, clock Clock, observer Observer) *Activator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Activator{repos: repos, clock: clock, observer: observer}
}

// CompleteAndActivate marks the transaction paid and applies its intent to the
// payable in one database transaction. It returns false without error when
// the transaction was already paid.
func (a *Activator) CompleteAndActivate(ctx context.Context, transactionID uint) (bool, error) {
	var completed *models.Transaction
	err := a.repos.InTransaction(ctx, func(tx *repository.Repositories) error {
		t, err := a.completeAndActivateTx(tx, transactionID)
		if err != nil {
			return err
		}
		completed = t
		return nil
	})
	if err != nil {
		return false, err
	}
	if completed == nil {
		return false, nil
	}

	log.Infof("[Activation] transaction %s completed (%s #%d, intent %s)",
		completed.Reference, completed.PayableType, completed.PayableID, completed.Intent)
	a.observer.TransactionCompleted(ctx, completed)
	return true, nil
}

// completeAndActivateTx must run inside InTransaction. A nil transaction with
// a nil error means there was nothing to do.
func (a *Activator) completeAndActivateTx(tx *repository.Repositories, transactionID uint) (*models.Transaction, error) {
	t, err := tx.Transaction.GetByIDForUpdate(transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	if t.IsPaid() {
		return nil, nil
	}
	if t.Status == models.TransactionStatusFailed {
		return nil, ErrAlreadyFinal
	}

	now := a.clock.Now()
	marked, err := tx.Transaction.MarkCompleted(t.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark transaction completed: %w", err)
	}
	if !marked {
		// another writer completed it between the read and the update
		return nil, nil
	}
	t.Status = models.TransactionStatusCompleted
	t.PaidAt = &now

	if err := a.activatePayable(tx, t, now); err != nil {
		return nil, err
	}
	return t, nil
}

func (a *Activator) activatePayable(tx *repository.Repositories, t *models.Transaction, now time.Time) error {
	payable, err := t.Payable()
	if err != nil {
		log.Warnf("[Activation] transaction %s has no usable payable, needs manual reconciliation: %v", t.Reference, err)
		return nil
	}
	intent, err := t.ActivationIntent()
	if err != nil {
		log.Warnf("[Activation] transaction %s has an unreadable intent, using default: %v", t.Reference, err)
		intent = models.DefaultIntentFor(payable.Kind())
	}

	switch p := payable.(type) {
	case models.SubscriptionPayable:
		return a.activateSubscription(tx, t, p, intent, now)
	case models.AdCampaignPayable:
		return a.activateAdCampaign(tx, t, p, intent, now)
	case models.WalletPayable:
		return a.activateWallet(tx, t, p, intent)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayable, payable)
	}
}

func (a *Activator) activateSubscription(tx *repository.Repositories, t *models.Transaction, p models.SubscriptionPayable, intent models.ActivationIntent, now time.Time) error {
	sub, err := tx.Subscription.GetByIDForUpdate(p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Activation] subscription %d for transaction %s not found, needs manual reconciliation", p.ID, t.Reference)
			return nil
		}
		return fmt.Errorf("lock subscription: %w", err)
	}

	planID := sub.PlanID
	switch i := intent.(type) {
	case models.NewSubscription:
		if i.PlanID != 0 {
			planID = i.PlanID
		}
	case models.RenewSubscription:
		if i.PlanID != 0 {
			planID = i.PlanID
		}
	}
	var plan *models.SubscriptionPlan
	if planID != 0 {
		plan, err = tx.Subscription.GetPlan(planID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load plan: %w", err)
		}
		if plan != nil {
			sub.PlanID = plan.ID
		}
	}
	days := sub.TermDays(plan)

	if _, renew := intent.(models.RenewSubscription); renew {
		sub.Renew(now, days)
	} else {
		sub.Activate(now, days)
	}
	if err := tx.Subscription.Save(sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}

	business, err := tx.Business.GetByIDForUpdate(sub.BusinessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Activation] business %d for subscription %d not found", sub.BusinessID, sub.ID)
			return nil
		}
		return fmt.Errorf("lock business: %w", err)
	}
	if business.IsVerified && sub.EndsAt != nil {
		business.GrantPremiumUntil(*sub.EndsAt)
		if err := tx.Business.Save(business); err != nil {
			return fmt.Errorf("save business: %w", err)
		}
	}
	return nil
}

func (a *Activator) activateAdCampaign(tx *repository.Repositories, t *models.Transaction, p models.AdCampaignPayable, intent models.ActivationIntent, now time.Time) error {
	campaign, err := tx.AdCampaign.GetByIDForUpdate(p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Activation] ad campaign %d for transaction %s not found, needs manual reconciliation", p.ID, t.Reference)
			return nil
		}
		return fmt.Errorf("lock ad campaign: %w", err)
	}

	switch i := intent.(type) {
	case models.ExtendCampaignDuration:
		campaign.ExtendDuration(now, i.Days)
	case models.ExtendCampaignBudget:
		amount := i.Amount
		if amount.IsZero() {
			amount = t.Amount
		}
		campaign.Budget = campaign.Budget.Add(amount)
	default:
		campaign.IsPaid = true
		campaign.IsActive = true
		if campaign.StartsAt == nil {
			start := now
			campaign.StartsAt = &start
		}
	}
	if err := tx.AdCampaign.Save(campaign); err != nil {
		return fmt.Errorf("save ad campaign: %w", err)
	}
	return nil
}

func (a *Activator) activateWallet(tx *repository.Repositories, t *models.Transaction, p models.WalletPayable, intent models.ActivationIntent) error {
	w, err := tx.Wallet.GetByIDForUpdate(p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Activation] wallet %d for transaction %s not found, needs manual reconciliation", p.ID, t.Reference)
			return nil
		}
		return fmt.Errorf("lock wallet: %w", err)
	}

	if pc, ok := intent.(models.PurchaseCredits); ok && pc.Count > 0 {
		return addWalletCredits(tx, w, pc.Credit, pc.Count, t.ID)
	}
	return creditWallet(tx, w, t.Amount, t.ID, "Wallet funding "+t.Reference)
}

// FailTransaction moves a pending transaction to failed. Completed
// transactions are never failed and yield ErrAlreadyFinal.
func (a *Activator) FailTransaction(ctx context.Context, transactionID uint, reason string) (bool, error) {
	repos := a.repos.WithContext(ctx)
	t, err := repos.Transaction.GetByID(transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTransactionNotFound
		}
		return false, err
	}
	if t.IsPaid() {
		return false, ErrAlreadyFinal
	}

	failed, err := repos.Transaction.MarkFailed(t.ID, reason)
	if err != nil {
		return false, fmt.Errorf("mark transaction failed: %w", err)
	}
	if !failed {
		return false, nil
	}
	t.Status = models.TransactionStatusFailed
	t.FailureReason = reason

	log.Infof("[Activation] transaction %s failed: %s", t.Reference, reason)
	a.observer.TransactionFailed(ctx, t)
	return true, nil
}
