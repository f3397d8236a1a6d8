package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

// midtransAPI is the subset of the Midtrans SDK the adapter calls.
type midtransAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

type midtransSDK struct {
	snap snap.Client
	core coreapi.Client
}

func (s *midtransSDK) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	return s.snap.CreateTransaction(req)
}

func (s *midtransSDK) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error) {
	return s.core.CheckTransaction(orderID)
}

// midtransCurrency is the only currency Snap charges in, in whole rupiah.
const midtransCurrency = "IDR"

// Midtrans signs notifications inside the body (signature_key) instead of a header.
type Midtrans struct {
	ServerKey string
	api       midtransAPI
}

func NewMidtransFromEnv() *Midtrans {
	serverKey := strings.TrimSpace(env.GetEnv("MIDTRANS_SERVER_KEY", ""))
	environment := midtrans.Sandbox
	if env.GetEnv("MIDTRANS_PRODUCTION", "false") == "true" {
		environment = midtrans.Production
	}

	// The SDK calls take no context, so its HTTP client carries the timeout.
	httpClient := midtrans.GetHttpClient(environment)
	httpClient.HttpClient = newHTTPClient()

	sdk := &midtransSDK{}
	sdk.snap.New(serverKey, environment)
	sdk.snap.HttpClient = httpClient
	sdk.core.New(serverKey, environment)
	sdk.core.HttpClient = httpClient
	return &Midtrans{ServerKey: serverKey, api: sdk}
}

func (m *Midtrans) Slug() string { return models.GatewayMidtrans }

func (m *Midtrans) Verify(body []byte, _ func(string) string) bool {
	return VerifySignature(models.GatewayMidtrans, body, "", m.ServerKey)
}

type midtransNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	StatusMessage     string `json:"status_message"`
}

// midtransOutcome maps transaction_status and fraud_status to an Outcome.
func midtransOutcome(status, fraud string) Outcome {
	switch strings.ToLower(status) {
	case "settlement":
		return OutcomeSuccess
	case "capture":
		if fraud == "" || strings.EqualFold(fraud, "accept") {
			return OutcomeSuccess
		}
		if strings.EqualFold(fraud, "deny") {
			return OutcomeFailure
		}
		return OutcomeUnhandled
	case "deny", "cancel", "expire", "failure":
		return OutcomeFailure
	default:
		return OutcomeUnhandled
	}
}

func (m *Midtrans) ParseEvent(body []byte) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(n.TransactionStatus) == "" || strings.TrimSpace(n.OrderID) == "" {
		return nil, fmt.Errorf("%w: missing transaction_status or order_id", ErrMalformedPayload)
	}

	amount, _ := decimal.NewFromString(n.GrossAmount)
	ev := &Event{
		Type:             n.TransactionStatus,
		Reference:        strings.TrimSpace(n.OrderID),
		GatewayReference: n.TransactionID,
		Outcome:          midtransOutcome(n.TransactionStatus, n.FraudStatus),
		Amount:           amount,
		Currency:         n.Currency,
		Message:          n.StatusMessage,
	}
	if n.TransactionID != "" {
		ev.ID = n.TransactionID + ":" + n.TransactionStatus
	} else {
		ev.ID = FallbackEventID(body)
	}
	return ev, nil
}

// callMidtrans runs a blocking SDK call and gives up when ctx ends. The call
// itself is bounded by the SDK's HTTP client timeout.
func callMidtrans[T any](ctx context.Context, call func() (T, *midtrans.Error)) (T, error) {
	type result struct {
		val  T
		merr *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		val, merr := call()
		done <- result{val: val, merr: merr}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		if r.merr != nil {
			return r.val, errors.New(r.merr.Error())
		}
		return r.val, nil
	}
}

func (m *Midtrans) Initialize(ctx context.Context, checkout Checkout) (*CheckoutResult, error) {
	if m.ServerKey == "" || m.api == nil {
		return nil, fmt.Errorf("midtrans: %w", ErrNotConfigured)
	}
	if !strings.EqualFold(strings.TrimSpace(checkout.Currency), midtransCurrency) {
		return nil, fmt.Errorf("midtrans: %w: currency %q", ErrUnsupportedCheckout, checkout.Currency)
	}
	if !checkout.Amount.IsPositive() || !checkout.Amount.Equal(checkout.Amount.Truncate(0)) {
		return nil, fmt.Errorf("midtrans: %w: amount %s is not a whole rupiah value", ErrUnsupportedCheckout, checkout.Amount.String())
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  checkout.Reference,
			GrossAmt: checkout.Amount.IntPart(),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: checkout.CustomerName,
			Email: checkout.Email,
		},
		Callbacks: &snap.Callbacks{Finish: checkout.CallbackURL},
	}
	resp, err := callMidtrans(ctx, func() (*snap.Response, *midtrans.Error) {
		return m.api.CreateTransaction(req)
	})
	if err != nil {
		return nil, fmt.Errorf("midtrans initialize: %w", err)
	}
	if resp == nil || resp.RedirectURL == "" {
		return nil, errors.New("midtrans initialize returned no redirect url")
	}
	raw, _ := json.Marshal(resp)
	return &CheckoutResult{
		RedirectURL:      resp.RedirectURL,
		GatewayReference: resp.Token,
		Raw:              raw,
	}, nil
}

func (m *Midtrans) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	if m.ServerKey == "" || m.api == nil {
		return nil, fmt.Errorf("midtrans: %w", ErrNotConfigured)
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.New("reference is required")
	}

	status, err := callMidtrans(ctx, func() (*coreapi.TransactionStatusResponse, *midtrans.Error) {
		return m.api.CheckTransaction(ref)
	})
	if err != nil {
		return nil, fmt.Errorf("midtrans verify: %w", err)
	}
	if status == nil {
		return nil, errors.New("midtrans verify returned no status")
	}
	raw, _ := json.Marshal(status)
	amount, _ := decimal.NewFromString(status.GrossAmount)
	return &Verification{
		Reference:        status.OrderID,
		GatewayReference: status.TransactionID,
		Outcome:          midtransOutcome(status.TransactionStatus, status.FraudStatus),
		Amount:           amount,
		Currency:         status.Currency,
		Message:          status.StatusMessage,
		Raw:              raw,
	}, nil
}
