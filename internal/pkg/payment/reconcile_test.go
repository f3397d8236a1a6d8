package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

func paystackBody(event, reference string, id int, kobo int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"data":{"id":%d,"reference":%q,"amount":%d,"currency":"NGN","status":"success","gateway_response":"Approved"}}`,
		event, id, reference, kobo))
}

func deliver(t *testing.T, f *fixture, body []byte) (*WebhookResult, error) {
	t.Helper()
	return f.svc.Reconciler.HandleWebhook(context.Background(), "paystack", body, paystackHeaders(signPaystack(body)))
}

func ledgerRows(t *testing.T, f *fixture) []models.WebhookEvent {
	t.Helper()
	var rows []models.WebhookEvent
	require.NoError(t, f.repos.DB().Order("id").Find(&rows).Error)
	return rows
}

func TestWebhookDeliveredTwiceActivatesOnce(t *testing.T) {
	f := newFixture(t)
	b := f.business(true)
	sub := f.subscription(b.ID, nil)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.SubscriptionPayable{ID: sub.ID}, nil)
	body := paystackBody("charge.success", tx.Reference, 3021, 500000)

	res, err := deliver(t, f, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)
	assert.False(t, res.Duplicate)

	first := f.reload(tx.ID)
	assert.Equal(t, models.TransactionStatusCompleted, first.Status)
	s1, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)

	res, err = deliver(t, f, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)
	assert.True(t, res.Duplicate)

	second := f.reload(tx.ID)
	assert.Equal(t, first.PaidAt.Unix(), second.PaidAt.Unix())
	s2, err := f.repos.Subscription.GetByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.EndsAt.Unix(), s2.EndsAt.Unix())

	rows := ledgerRows(t, f)
	require.Len(t, rows, 1)
	assert.Equal(t, "charge.success:3021", rows[0].EventID)
	assert.Equal(t, models.WebhookStatusProcessed, rows[0].Status)
	assert.True(t, rows[0].SignatureValid)
	assert.Equal(t, tx.Reference, rows[0].Reference)

	f.observer.AssertNumberOfCalls(t, "WebhookRecorded", 1)
	f.observer.AssertNumberOfCalls(t, "TransactionCompleted", 1)
}

func TestWebhookRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	body := paystackBody("charge.success", tx.Reference, 1, 500000)
	sig := signPaystack(body)
	tampered := []byte(strings.Replace(string(body), "500000", "900000", 1))

	_, err := f.svc.Reconciler.HandleWebhook(context.Background(), "paystack", tampered, paystackHeaders(sig))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.svc.Reconciler.HandleWebhook(context.Background(), "paystack", body, paystackHeaders(""))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.Empty(t, ledgerRows(t, f))
	assert.True(t, f.reload(tx.ID).IsPending())
	got, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestWebhookUnknownGatewayAndMalformedBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reconciler.HandleWebhook(context.Background(), "stripe", []byte(`{}`), paystackHeaders(""))
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, err = deliver(t, f, []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = deliver(t, f, []byte(`{"event":"charge.success","data":{"id":5}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	assert.Empty(t, ledgerRows(t, f))
}

func TestWebhookUnknownReferenceIsIgnoredAndRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := paystackBody("charge.success", "TXN-LATE", 77, 500000)

	res, err := deliver(t, f, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusIgnored, res.Status)

	stored, err := f.svc.Ledger.Get(ctx, res.EventID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, ErrTransactionNotFound.Error())

	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)
	require.NoError(t, f.repos.DB().Model(tx).Update("reference", "TXN-LATE").Error)

	res, err = f.svc.Reconciler.RetryEvent(ctx, res.EventID)
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)

	stored, err = f.svc.Ledger.Get(ctx, res.EventID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusProcessed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Empty(t, stored.ErrorMessage)
	assert.Equal(t, models.TransactionStatusCompleted, f.reload(tx.ID).Status)

	res, err = f.svc.Reconciler.RetryEvent(ctx, res.EventID)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	_, err = f.svc.Reconciler.RetryEvent(ctx, 4040)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestWebhookUnderpaymentDoesNotActivate(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	res, err := deliver(t, f, paystackBody("charge.success", tx.Reference, 10, 10000))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusIgnored, res.Status)
	assert.True(t, f.reload(tx.ID).IsPending())

	rows := ledgerRows(t, f)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WebhookStatusFailed, rows[0].Status)
}

func TestWebhookFromOtherGatewayIsIgnored(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayBankTransfer, models.WalletPayable{ID: w.ID}, nil)

	res, err := deliver(t, f, paystackBody("charge.success", tx.Reference, 77, 500000))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusIgnored, res.Status)

	got := f.reload(tx.ID)
	assert.True(t, got.IsPending())
	assert.Nil(t, got.PaidAt)

	rows := ledgerRows(t, f)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WebhookStatusFailed, rows[0].Status)
	assert.Contains(t, rows[0].ErrorMessage, ErrGatewayMismatch.Error())

	wallet, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestWebhookFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	failed := []byte(fmt.Sprintf(`{"event":"charge.failed","data":{"id":11,"reference":%q,"amount":500000,"status":"failed","gateway_response":"Declined"}}`, tx.Reference))
	res, err := deliver(t, f, failed)
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)
	got := f.reload(tx.ID)
	assert.Equal(t, models.TransactionStatusFailed, got.Status)
	assert.Equal(t, "Declined", got.FailureReason)

	res, err = deliver(t, f, paystackBody("charge.success", tx.Reference, 11, 500000))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusIgnored, res.Status)
	assert.Equal(t, models.TransactionStatusFailed, f.reload(tx.ID).Status)

	wallet, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestWebhookUnhandledEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	res, err := deliver(t, f, []byte(`{"event":"transfer.success","data":{"id":9}}`))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusIgnored, res.Status)

	rows := ledgerRows(t, f)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WebhookStatusProcessed, rows[0].Status)
}

func TestWebhookMatchesGatewayReference(t *testing.T) {
	adapter := &mockAdapter{slug: models.GatewayFlutterwave}
	f := newFixture(t, adapter)
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayFlutterwave, models.WalletPayable{ID: w.ID}, nil)
	require.NoError(t, f.repos.Transaction.SaveGatewayResult(tx.ID, "FLW-MOCK-1", nil))

	body := []byte(`{"event":"charge.completed"}`)
	adapter.On("Verify", body).Return(true)
	adapter.On("ParseEvent", body).Return(&gateway.Event{
		ID: "charge.completed:1:successful", Type: "charge.completed", Reference: "unknown-ref",
		GatewayReference: "FLW-MOCK-1", Outcome: gateway.OutcomeSuccess, Amount: decimal.NewFromInt(5000), Currency: "NGN",
	}, nil)

	res, err := f.svc.Reconciler.HandleWebhook(context.Background(), "flutterwave", body, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)
	assert.Equal(t, models.TransactionStatusCompleted, f.reload(tx.ID).Status)
}

func TestFlutterwaveWebhookRequiresBodySignature(t *testing.T) {
	const secretHash = "flw-secret-hash"
	f := newFixture(t, &gateway.Flutterwave{SecretHash: secretHash})
	ctx := context.Background()
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayFlutterwave, models.WalletPayable{ID: w.ID}, nil)

	genuine := []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"id":8801,"tx_ref":%q,"amount":100,"currency":"NGN","status":"failed"}}`, tx.Reference))
	tampered := []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"id":8801,"tx_ref":%q,"amount":5000,"currency":"NGN","status":"successful"}}`, tx.Reference))
	sig := signFlutterwave(genuine, secretHash)

	_, err := f.svc.Reconciler.HandleWebhook(ctx, "flutterwave", tampered, func(k string) string {
		if k == gateway.FlutterwaveSignatureHeader {
			return sig
		}
		return ""
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.svc.Reconciler.HandleWebhook(ctx, "flutterwave", tampered, func(k string) string {
		if k == "verif-hash" {
			return secretHash
		}
		return ""
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.Empty(t, ledgerRows(t, f))
	got := f.reload(tx.ID)
	assert.True(t, got.IsPending())
	assert.Nil(t, got.PaidAt)
	wallet, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())

	res, err := f.svc.Reconciler.HandleWebhook(ctx, "flutterwave", tampered, func(k string) string {
		if k == gateway.FlutterwaveSignatureHeader {
			return signFlutterwave(tampered, secretHash)
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)
	assert.Equal(t, models.TransactionStatusCompleted, f.reload(tx.ID).Status)
}

func newPaystackVerifyServer(t *testing.T, status string, kobo int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":true,"message":"Verification successful","data":{"id":555,"reference":%q,"status":%q,"amount":%d,"currency":"NGN","gateway_response":"Approved"}}`, ref, status, kobo)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallbackThenWebhookActivatesOnce(t *testing.T) {
	srv := newPaystackVerifyServer(t, "success", 500000)
	f := newFixture(t, &gateway.Paystack{SecretKey: testPaystackKey, BaseURL: srv.URL, HTTPClient: srv.Client()})
	ctx := context.Background()
	b, _ := referredBusiness(t, f)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	got, err := f.svc.Reconciler.HandleCallback(ctx, "paystack", tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)

	res, err := deliver(t, f, paystackBody("charge.success", tx.Reference, 555, 500000))
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusSuccess, res.Status)

	wallet, err := f.repos.Wallet.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(5000)), wallet.Balance.String())

	commission, err := f.svc.Commission.Balance(ctx, testReferrerUser)
	require.NoError(t, err)
	assert.True(t, commission.Balance.Equal(decimal.NewFromInt(500)), commission.Balance.String())
}

func TestCallbackPendingVerificationLeavesTransaction(t *testing.T) {
	srv := newPaystackVerifyServer(t, "ongoing", 500000)
	f := newFixture(t, &gateway.Paystack{SecretKey: testPaystackKey, BaseURL: srv.URL, HTTPClient: srv.Client()})
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	got, err := f.svc.Reconciler.HandleCallback(context.Background(), "paystack", tx.Reference)
	require.NoError(t, err)
	assert.True(t, got.IsPending())

	_, err = f.svc.Reconciler.HandleCallback(context.Background(), "paystack", "TXN-NOPE")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCallbackGatewayDownKeepsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	f := newFixture(t, &gateway.Paystack{SecretKey: testPaystackKey, BaseURL: srv.URL, HTTPClient: srv.Client()})
	b := f.business(false)
	w := f.wallet(b.ID, 0)
	tx := f.pending(b.ID, 5000, models.GatewayPaystack, models.WalletPayable{ID: w.ID}, nil)

	_, err := f.svc.Reconciler.HandleCallback(context.Background(), "paystack", tx.Reference)
	assert.ErrorIs(t, err, ErrVerificationError)
	assert.True(t, f.reload(tx.ID).IsPending())
}
