package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

const defaultPaystackBaseURL = "https://api.paystack.co"

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body.
const PaystackSignatureHeader = "x-paystack-signature"

// Paystack amounts are in the currency's minor unit.
const paystackMinorUnits = 2

type Paystack struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
}

func NewPaystackFromEnv() *Paystack {
	return &Paystack{
		SecretKey:  strings.TrimSpace(env.GetEnv("PAYSTACK_SECRET_KEY", "")),
		BaseURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("PAYSTACK_BASE_URL", defaultPaystackBaseURL)), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (p *Paystack) Slug() string { return models.GatewayPaystack }

func (p *Paystack) Verify(body []byte, header func(string) string) bool {
	return VerifySignature(models.GatewayPaystack, body, header(PaystackSignatureHeader), p.SecretKey)
}

type paystackCharge struct {
	ID              json.Number `json:"id"`
	Reference       string      `json:"reference"`
	Status          string      `json:"status"`
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	GatewayResponse string      `json:"gateway_response"`
}

type paystackWebhook struct {
	Event string         `json:"event"`
	Data  paystackCharge `json:"data"`
}

func (p *Paystack) ParseEvent(body []byte) (*Event, error) {
	var w paystackWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(w.Event) == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}

	ev := &Event{
		Type:             w.Event,
		Reference:        strings.TrimSpace(w.Data.Reference),
		GatewayReference: w.Data.ID.String(),
		Currency:         w.Data.Currency,
		Amount:           fromMinorUnits(w.Data.Amount),
		Message:          w.Data.GatewayResponse,
	}
	if ev.GatewayReference != "" {
		ev.ID = w.Event + ":" + ev.GatewayReference
	} else {
		ev.ID = FallbackEventID(body)
	}

	switch w.Event {
	case "charge.success":
		ev.Outcome = OutcomeSuccess
	case "charge.failed":
		ev.Outcome = OutcomeFailure
	default:
		ev.Outcome = OutcomeUnhandled
	}
	if ev.Outcome != OutcomeUnhandled && ev.Reference == "" {
		return nil, fmt.Errorf("%w: missing data.reference", ErrMalformedPayload)
	}
	return ev, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) Initialize(ctx context.Context, checkout Checkout) (*CheckoutResult, error) {
	if p.SecretKey == "" {
		return nil, fmt.Errorf("paystack: %w", ErrNotConfigured)
	}

	payload := map[string]any{
		"email":        checkout.Email,
		"amount":       checkout.Amount.Shift(paystackMinorUnits).Round(0).IntPart(),
		"currency":     checkout.Currency,
		"reference":    checkout.Reference,
		"callback_url": checkout.CallbackURL,
		"metadata":     map[string]string{"description": checkout.Description},
	}
	raw, err := doJSON(ctx, p.HTTPClient, http.MethodPost, p.BaseURL+"/transaction/initialize", p.SecretKey, payload)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}

	var resp paystackEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
	}
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &data)
	}
	if !resp.Status || data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize rejected: %s", resp.Message)
	}
	return &CheckoutResult{
		RedirectURL:      data.AuthorizationURL,
		GatewayReference: data.AccessCode,
		Raw:              raw,
	}, nil
}

func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	if p.SecretKey == "" {
		return nil, fmt.Errorf("paystack: %w", ErrNotConfigured)
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.New("reference is required")
	}

	raw, err := doJSON(ctx, p.HTTPClient, http.MethodGet, p.BaseURL+"/transaction/verify/"+url.PathEscape(ref), p.SecretKey, nil)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}
	var resp paystackEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}
	var charge paystackCharge
	if err := json.Unmarshal(resp.Data, &charge); err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}

	v := &Verification{
		Reference:        charge.Reference,
		GatewayReference: charge.ID.String(),
		Amount:           fromMinorUnits(charge.Amount),
		Currency:         charge.Currency,
		Message:          charge.GatewayResponse,
		Raw:              raw,
	}
	switch {
	case resp.Status && charge.Status == "success":
		v.Outcome = OutcomeSuccess
	case charge.Status == "failed" || charge.Status == "abandoned" || charge.Status == "reversed":
		v.Outcome = OutcomeFailure
	default:
		v.Outcome = OutcomeUnhandled
	}
	return v, nil
}

func fromMinorUnits(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(-paystackMinorUnits)
}
