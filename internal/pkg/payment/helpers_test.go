package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/database"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testOwnerID      = 7
	testPaystackKey  = "sk_test_bizhub"
	testReferrerUser = 42
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) TransactionCompleted(ctx context.Context, tx *models.Transaction) {
	m.Called(ctx, tx)
}

func (m *mockObserver) TransactionFailed(ctx context.Context, tx *models.Transaction) {
	m.Called(ctx, tx)
}

func (m *mockObserver) WebhookRecorded(ctx context.Context, event *models.WebhookEvent) {
	m.Called(ctx, event)
}

func newLenientObserver() *mockObserver {
	obs := &mockObserver{}
	obs.On("TransactionCompleted", mock.Anything, mock.Anything).Return().Maybe()
	obs.On("TransactionFailed", mock.Anything, mock.Anything).Return().Maybe()
	obs.On("WebhookRecorded", mock.Anything, mock.Anything).Return().Maybe()
	return obs
}

type mockAdapter struct {
	mock.Mock
	slug string
}

func (m *mockAdapter) Slug() string { return m.slug }

func (m *mockAdapter) Verify(body []byte, header func(string) string) bool {
	return m.Called(body).Bool(0)
}

func (m *mockAdapter) ParseEvent(body []byte) (*gateway.Event, error) {
	args := m.Called(body)
	ev, _ := args.Get(0).(*gateway.Event)
	return ev, args.Error(1)
}

func (m *mockAdapter) Initialize(ctx context.Context, checkout gateway.Checkout) (*gateway.CheckoutResult, error) {
	args := m.Called(ctx, checkout)
	res, _ := args.Get(0).(*gateway.CheckoutResult)
	return res, args.Error(1)
}

func (m *mockAdapter) VerifyTransaction(ctx context.Context, reference string) (*gateway.Verification, error) {
	args := m.Called(ctx, reference)
	v, _ := args.Get(0).(*gateway.Verification)
	return v, args.Error(1)
}

type fixture struct {
	t        *testing.T
	repos    *repository.Repositories
	registry *gateway.Registry
	observer *mockObserver
	svc      *Service
}

func newFixture(t *testing.T, adapters ...gateway.Adapter) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	repos := repository.NewRepositories(db)
	if len(adapters) == 0 {
		adapters = []gateway.Adapter{&gateway.Paystack{SecretKey: testPaystackKey}}
	}
	registry := gateway.NewRegistry(adapters...)
	obs := newLenientObserver()

	cfg := DefaultConfig()
	cfg.PublicURL = "https://bizhub.test"
	cfg.GatewayTimeout = 2 * time.Second

	f := &fixture{
		t:        t,
		repos:    repos,
		registry: registry,
		observer: obs,
		svc:      NewService(repos, registry, cfg, Options{Clock: FixedClock{T: testNow}, Observer: obs}),
	}
	for _, slug := range []string{models.GatewayPaystack, models.GatewayFlutterwave, models.GatewayBankTransfer, models.GatewayWallet} {
		require.NoError(t, repos.PaymentGateway.Upsert(&models.PaymentGateway{Slug: slug, Name: slug, IsActive: true, IsEnabled: true}))
	}
	return f
}

func (f *fixture) business(verified bool) *models.Business {
	f.t.Helper()
	b := &models.Business{OwnerID: testOwnerID, Name: "Mama Put Kitchen", IsVerified: verified}
	require.NoError(f.t, f.repos.Business.Create(b))
	return b
}

func (f *fixture) subscription(businessID uint, endsAt *time.Time) *models.Subscription {
	f.t.Helper()
	s := &models.Subscription{BusinessID: businessID, Status: models.SubscriptionStatusPending, EndsAt: endsAt}
	if endsAt != nil {
		s.Status = models.SubscriptionStatusActive
	}
	require.NoError(f.t, f.repos.Subscription.Create(s))
	return s
}

func (f *fixture) wallet(businessID uint, balance int64) *models.Wallet {
	f.t.Helper()
	w := &models.Wallet{BusinessID: businessID, Balance: decimal.NewFromInt(balance)}
	require.NoError(f.t, f.repos.Wallet.Create(w))
	return w
}

func (f *fixture) pending(businessID uint, amount int64, method string, p models.Payable, intent models.ActivationIntent) *models.Transaction {
	f.t.Helper()
	tx := &models.Transaction{
		UserID:        testOwnerID,
		BusinessID:    businessID,
		Reference:     NewReference(),
		Amount:        decimal.NewFromInt(amount),
		Currency:      "NGN",
		PaymentMethod: method,
		Status:        models.TransactionStatusPending,
	}
	tx.SetPayable(p)
	if intent == nil {
		intent = models.DefaultIntentFor(p.Kind())
	}
	tx.SetActivationIntent(intent)
	require.NoError(f.t, f.repos.Transaction.Create(tx))
	return tx
}

func (f *fixture) reload(id uint) *models.Transaction {
	f.t.Helper()
	tx, err := f.repos.Transaction.GetByID(id)
	require.NoError(f.t, err)
	return tx
}

func signPaystack(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testPaystackKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signFlutterwave(body []byte, secretHash string) string {
	mac := hmac.New(sha256.New, []byte(secretHash))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func paystackHeaders(sig string) func(string) string {
	return func(k string) string {
		if k == gateway.PaystackSignatureHeader {
			return sig
		}
		return ""
	}
}

func daysAfter(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
