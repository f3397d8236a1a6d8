package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/app/models"
)

func TestActivateNewSubscriptionGrantsPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(true)
	sub := f.subscription(b.ID, nil)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: sub.ID}, nil)

	activated, err := f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, activated)

	got := f.reload(tx.ID)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.WithinDuration(t, testNow, *got.PaidAt, time.Second)

	s, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, s.Status)
	require.NotNil(t, s.EndsAt)
	assert.WithinDuration(t, daysAfter(testNow, models.DefaultSubscriptionTermDays), *s.EndsAt, time.Second)

	biz, err := f.repos.Business.GetByID(b.ID)
	require.NoError(t, err)
	assert.True(t, biz.IsPremium)
	require.NotNil(t, biz.PremiumUntil)
	assert.WithinDuration(t, *s.EndsAt, *biz.PremiumUntil, time.Second)
}

func TestActivateUnverifiedBusinessStaysStandard(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	sub := f.subscription(b.ID, nil)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: sub.ID}, nil)

	_, err := f.svc.Activator.CompleteAndActivate(context.Background(), tx.ID)
	require.NoError(t, err)

	biz, err := f.repos.Business.GetByID(b.ID)
	require.NoError(t, err)
	assert.False(t, biz.IsPremium)
	assert.Nil(t, biz.PremiumUntil)
}

func TestCompleteAndActivateRunsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obs := &mockObserver{}
	obs.On("TransactionCompleted", mock.Anything, mock.Anything).Return().Once()
	activator := NewActivator(f.repos, FixedClock{T: testNow}, obs)

	b := f.business(true)
	sub := f.subscription(b.ID, nil)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: sub.ID}, nil)

	activated, err := activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	require.True(t, activated)
	first, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)

	later := NewActivator(f.repos, FixedClock{T: testNow.Add(48 * time.Hour)}, obs)
	activated, err = later.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, activated)

	second, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, *first.EndsAt, *second.EndsAt, time.Second)
	assert.WithinDuration(t, testNow, *f.reload(tx.ID).PaidAt, time.Second)
	obs.AssertExpectations(t)
}

func TestRenewalNeverShortens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(false)
	plan := &models.SubscriptionPlan{Name: "Gold", Price: decimal.NewFromInt(5000), DurationDays: 30, IsActive: true}
	require.NoError(t, f.repos.Subscription.CreatePlan(plan))

	future := daysAfter(testNow, 10)
	ahead := f.subscription(b.ID, &future)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: ahead.ID}, models.RenewSubscription{PlanID: plan.ID})
	_, err := f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)

	got, err := f.repos.Subscription.GetByID(ahead.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, daysAfter(future, 30), *got.EndsAt, time.Second)
	assert.Equal(t, plan.ID, got.PlanID)

	past := daysAfter(testNow, -5)
	lapsed := f.subscription(b.ID, &past)
	tx = f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: lapsed.ID}, models.RenewSubscription{PlanID: plan.ID})
	_, err = f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)

	got, err = f.repos.Subscription.GetByID(lapsed.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, daysAfter(testNow, 30), *got.EndsAt, time.Second)
	assert.False(t, got.EndsAt.Before(past))
}

func TestActivatePurchaseCreditsKeepsBalance(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 500, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, models.PurchaseCredits{Credit: models.CreditKindAd, Count: 50})

	activated, err := f.svc.Activator.CompleteAndActivate(context.Background(), tx.ID)
	require.NoError(t, err)
	require.True(t, activated)

	got, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.AdCredits)
	assert.True(t, got.Balance.IsZero())

	entries, err := f.repos.Wallet.ListTransactions(w.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.WalletTxCreditPurchase, entries[0].Type)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 0, entries[0].CreditsBefore)
	assert.Equal(t, 50, entries[0].CreditsAfter)
}

func TestActivateFundWallet(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 200)
	tx := f.pending(b.ID, 1500, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	_, err := f.svc.Activator.CompleteAndActivate(context.Background(), tx.ID)
	require.NoError(t, err)

	got, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1700)), got.Balance.String())

	entries, err := f.repos.Wallet.ListTransactions(w.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.WalletTxDeposit, entries[0].Type)
	assert.True(t, entries[0].BalanceBefore.Equal(decimal.NewFromInt(200)))
	assert.True(t, entries[0].BalanceAfter.Equal(decimal.NewFromInt(1700)))
}

func TestActivateAdCampaignVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(false)

	campaign := &models.AdCampaign{BusinessID: b.ID, Name: "Weekend promo", Budget: decimal.NewFromInt(1000)}
	require.NoError(t, f.repos.AdCampaign.Create(campaign))

	tx := f.pending(b.ID, 1000, models.GatewayPaystack, models.AdCampaignPayable{ID: campaign.ID}, nil)
	_, err := f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	got, err := f.repos.AdCampaign.GetByID(campaign.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.True(t, got.IsActive)
	assert.True(t, got.Budget.Equal(decimal.NewFromInt(1000)))

	tx = f.pending(b.ID, 700, models.GatewayPaystack, models.AdCampaignPayable{ID: campaign.ID}, models.ExtendCampaignBudget{})
	_, err = f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	got, err = f.repos.AdCampaign.GetByID(campaign.ID)
	require.NoError(t, err)
	assert.True(t, got.Budget.Equal(decimal.NewFromInt(1700)), got.Budget.String())
	assert.Nil(t, got.EndsAt)

	tx = f.pending(b.ID, 300, models.GatewayPaystack, models.AdCampaignPayable{ID: campaign.ID}, models.ExtendCampaignDuration{Days: 14})
	_, err = f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	require.NoError(t, err)
	got, err = f.repos.AdCampaign.GetByID(campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndsAt)
	assert.WithinDuration(t, daysAfter(testNow, 14), *got.EndsAt, time.Second)
	assert.True(t, got.Budget.Equal(decimal.NewFromInt(1700)))
}

func TestActivateMissingPayableStillCompletes(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: 9999}, nil)

	activated, err := f.svc.Activator.CompleteAndActivate(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.True(t, activated)
	assert.Equal(t, models.TransactionStatusCompleted, f.reload(tx.ID).Status)
}

func TestActivateUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Activator.CompleteAndActivate(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestFailTransactionIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 1000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	failed, err := f.svc.Activator.FailTransaction(ctx, tx.ID, "Declined")
	require.NoError(t, err)
	assert.True(t, failed)
	got := f.reload(tx.ID)
	assert.Equal(t, models.TransactionStatusFailed, got.Status)
	assert.Equal(t, "Declined", got.FailureReason)

	failed, err = f.svc.Activator.FailTransaction(ctx, tx.ID, "again")
	require.NoError(t, err)
	assert.False(t, failed)

	_, err = f.svc.Activator.CompleteAndActivate(ctx, tx.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinal)
	assert.Nil(t, f.reload(tx.ID).PaidAt)

	paid := f.pending(b.ID, 1000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)
	_, err = f.svc.Activator.CompleteAndActivate(ctx, paid.ID)
	require.NoError(t, err)
	_, err = f.svc.Activator.FailTransaction(ctx, paid.ID, "late failure")
	assert.ErrorIs(t, err, ErrAlreadyFinal)
	assert.Equal(t, models.TransactionStatusCompleted, f.reload(paid.ID).Status)
}
