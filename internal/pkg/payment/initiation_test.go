package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

func owner() Payer {
	return Payer{ID: testOwnerID, Email: "owner@example.com", Name: "Ada Obi"}
}

func countTransactions(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.repos.DB().Model(&models.Transaction{}).Count(&n).Error)
	return n
}

func TestInitializeRedirect(t *testing.T) {
	adapter := &mockAdapter{slug: models.GatewayPaystack}
	f := newFixture(t, adapter)
	b := f.business(false)
	sub := f.subscription(b.ID, nil)

	adapter.On("Initialize", mock.Anything, mock.MatchedBy(func(c gateway.Checkout) bool {
		return strings.HasPrefix(c.Reference, "TXN-") &&
			c.Amount.Equal(decimal.NewFromInt(5000)) &&
			c.Email == "owner@example.com" &&
			strings.HasPrefix(c.CallbackURL, "https://bizhub.test/payment/paystack/callback?reference=TXN-")
	})).Return(&gateway.CheckoutResult{
		RedirectURL:      "https://checkout.paystack.com/abc",
		GatewayReference: "ac_123",
		Raw:              []byte(`{"status":true}`),
	}, nil).Once()

	res := f.svc.Initiator.Initialize(context.Background(), InitRequest{
		User:        owner(),
		Amount:      decimal.NewFromInt(5000),
		GatewaySlug: "Paystack",
		Payable:     models.SubscriptionPayable{ID: sub.ID},
	})

	redirect, ok := res.(Redirect)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, "https://checkout.paystack.com/abc", redirect.URL)

	tx, err := f.repos.Transaction.GetByReference(redirect.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, models.PayableSubscription, tx.PayableType)
	assert.Equal(t, models.IntentNewSubscription, tx.Intent)
	require.NotNil(t, tx.GatewayReference)
	assert.Equal(t, "ac_123", *tx.GatewayReference)
	adapter.AssertExpectations(t)
}

func TestInitializeRejectsBeforeCreatingTransaction(t *testing.T) {
	adapter := &mockAdapter{slug: models.GatewayPaystack}
	f := newFixture(t, adapter)
	ctx := context.Background()
	b := f.business(false)
	sub := f.subscription(b.ID, nil)
	payable := models.SubscriptionPayable{ID: sub.ID}

	cases := map[string]InitRequest{
		"below minimum":   {User: owner(), Amount: decimal.NewFromInt(50), GatewaySlug: "paystack", Payable: payable},
		"no payable":      {User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack"},
		"wrong intent":    {User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack", Payable: payable, Intent: models.FundWallet{}},
		"missing payable": {User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack", Payable: models.AdCampaignPayable{ID: 404}},
		"not the owner":   {User: Payer{ID: 99}, Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack", Payable: payable},
		"unknown gateway": {User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "stripe", Payable: payable},
		"no adapter":      {User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "flutterwave", Payable: payable},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res := f.svc.Initiator.Initialize(ctx, req)
			failed, ok := res.(Failed)
			require.True(t, ok, "got %#v", res)
			assert.NotEmpty(t, failed.Message)
			assert.Empty(t, failed.Reference)
		})
	}

	require.NoError(t, f.repos.PaymentGateway.Upsert(&models.PaymentGateway{Slug: models.GatewayPaystack, Name: "Paystack", IsActive: true, IsEnabled: false}))
	res := f.svc.Initiator.Initialize(ctx, InitRequest{User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack", Payable: payable})
	assert.Equal(t, "failed", res.Kind())

	assert.Zero(t, countTransactions(t, f))
	adapter.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}

func TestInitializeGatewayErrorLeavesTransactionPending(t *testing.T) {
	adapter := &mockAdapter{slug: models.GatewayPaystack}
	f := newFixture(t, adapter)
	b := f.business(false)
	sub := f.subscription(b.ID, nil)
	adapter.On("Initialize", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	res := f.svc.Initiator.Initialize(context.Background(), InitRequest{
		User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "paystack", Payable: models.SubscriptionPayable{ID: sub.ID},
	})
	failed, ok := res.(Failed)
	require.True(t, ok)
	require.NotEmpty(t, failed.Reference)

	tx, err := f.repos.Transaction.GetByReference(failed.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Nil(t, tx.PaidAt)
	assert.Equal(t, int64(1), countTransactions(t, f))

	// The payer completed the checkout the gateway created before timing out.
	body := []byte(`{"event":"charge.success"}`)
	adapter.On("Verify", body).Return(true)
	adapter.On("ParseEvent", body).Return(&gateway.Event{
		ID: "charge.success:901", Type: "charge.success", Reference: failed.Reference,
		Outcome: gateway.OutcomeSuccess, Amount: decimal.NewFromInt(5000), Currency: "NGN",
	}, nil)

	wres, err := f.svc.Reconciler.HandleWebhook(context.Background(), "paystack", body, paystackHeaders(""))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, wres.Status)

	assert.Equal(t, models.TransactionStatusCompleted, f.reload(tx.ID).Status)
	activated, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, activated.Status)
}

func TestInitializeBankTransferInstructions(t *testing.T) {
	f := newFixture(t, &gateway.BankTransfer{})
	require.NoError(t, f.repos.PaymentGateway.Upsert(&models.PaymentGateway{
		Slug: models.GatewayBankTransfer, Name: "Bank transfer", IsActive: true, IsEnabled: true,
		Instructions: "Pay to GTBank 0123456789 (BizHub Ltd).",
	}))
	b := f.business(false)
	w := f.wallet(b.ID, 0)

	res := f.svc.Initiator.Initialize(context.Background(), InitRequest{
		User: owner(), Amount: decimal.NewFromInt(2500), GatewaySlug: "bank_transfer", Payable: models.WalletPayable{ID: w.ID},
	})
	instr, ok := res.(BankTransferInstructions)
	require.True(t, ok, "got %#v", res)
	assert.Contains(t, instr.Text, "GTBank 0123456789")
	assert.Contains(t, instr.Text, "2500.00 NGN")
	assert.Contains(t, instr.Text, instr.Reference)

	tx, err := f.repos.Transaction.GetByReference(instr.Reference)
	require.NoError(t, err)
	assert.True(t, tx.IsPending())

	confirmed, err := f.svc.Reconciler.ConfirmManual(context.Background(), instr.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, confirmed.Status)
	got, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(2500)))
}

func TestInitializeWalletPaymentDebitsAndActivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(true)
	f.wallet(b.ID, 8000)
	sub := f.subscription(b.ID, nil)

	res := f.svc.Initiator.Initialize(ctx, InitRequest{
		User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "wallet", Payable: models.SubscriptionPayable{ID: sub.ID},
	})
	success, ok := res.(Success)
	require.True(t, ok, "got %#v", res)

	tx, err := f.repos.Transaction.GetByReference(success.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)

	s, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, s.Status)

	w, err := f.repos.Wallet.GetByBusinessIDForUpdate(b.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(3000)), w.Balance.String())

	entries, err := f.repos.Wallet.ListTransactions(w.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.WalletTxPayment, entries[0].Type)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-5000)))
}

func TestInitializeWalletNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.business(false)
	f.wallet(b.ID, 1000)
	sub := f.subscription(b.ID, nil)

	res := f.svc.Initiator.Initialize(ctx, InitRequest{
		User: owner(), Amount: decimal.NewFromInt(5000), GatewaySlug: "wallet", Payable: models.SubscriptionPayable{ID: sub.ID},
	})
	failed, ok := res.(Failed)
	require.True(t, ok, "got %#v", res)

	tx, err := f.repos.Transaction.GetByReference(failed.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)

	w, err := f.repos.Wallet.GetByBusinessIDForUpdate(b.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))
	entries, err := f.repos.Wallet.ListTransactions(w.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	s, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, s.Status)
}

func TestInitializeWalletCannotFundItself(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 10000)

	res := f.svc.Initiator.Initialize(context.Background(), InitRequest{
		User: owner(), Amount: decimal.NewFromInt(1000), GatewaySlug: "wallet", Payable: models.WalletPayable{ID: w.ID},
	})
	assert.Equal(t, "failed", res.Kind())
	assert.Zero(t, countTransactions(t, f))
}
