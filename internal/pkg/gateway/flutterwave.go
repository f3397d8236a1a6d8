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

const defaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveSignatureHeader carries the hex HMAC-SHA256 of the compact JSON body.
const FlutterwaveSignatureHeader = "x-flutterwave-signature"

type Flutterwave struct {
	SecretKey string
	// SecretHash signs webhooks. It is separate from the API secret key.
	SecretHash string
	BaseURL    string
	HTTPClient *http.Client
}

func NewFlutterwaveFromEnv() *Flutterwave {
	return &Flutterwave{
		SecretKey:  strings.TrimSpace(env.GetEnv("FLUTTERWAVE_SECRET_KEY", "")),
		SecretHash: strings.TrimSpace(env.GetEnv("FLUTTERWAVE_SECRET_HASH", "")),
		BaseURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("FLUTTERWAVE_BASE_URL", defaultFlutterwaveBaseURL)), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (f *Flutterwave) Slug() string { return models.GatewayFlutterwave }

// Verify accepts only a body signature. The legacy verif-hash header echoes
// the secret without covering the body, so it is not enough on its own.
func (f *Flutterwave) Verify(body []byte, header func(string) string) bool {
	sig := strings.TrimSpace(header(FlutterwaveSignatureHeader))
	if sig == "" {
		return false
	}
	return VerifySignature(models.GatewayFlutterwave, body, sig, f.SecretHash)
}

type flutterwaveCharge struct {
	ID       json.Number `json:"id"`
	TxRef    string      `json:"tx_ref"`
	TxRefAlt string      `json:"txRef"`
	FlwRef   string      `json:"flw_ref"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"`
	Message  string      `json:"processor_response"`
}

func (c flutterwaveCharge) reference() string {
	if ref := strings.TrimSpace(c.TxRef); ref != "" {
		return ref
	}
	return strings.TrimSpace(c.TxRefAlt)
}

func (c flutterwaveCharge) outcome() Outcome {
	switch strings.ToLower(c.Status) {
	case "successful":
		return OutcomeSuccess
	case "failed", "cancelled":
		return OutcomeFailure
	default:
		return OutcomeUnhandled
	}
}

type flutterwaveWebhook struct {
	Event string            `json:"event"`
	Data  flutterwaveCharge `json:"data"`
}

func (f *Flutterwave) ParseEvent(body []byte) (*Event, error) {
	var w flutterwaveWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(w.Event) == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}

	ev := &Event{
		Type:             w.Event,
		Reference:        w.Data.reference(),
		GatewayReference: w.Data.ID.String(),
		Amount:           parseAmount(w.Data.Amount),
		Currency:         w.Data.Currency,
		Message:          w.Data.Message,
		Outcome:          OutcomeUnhandled,
	}
	if ev.GatewayReference != "" {
		ev.ID = w.Event + ":" + ev.GatewayReference + ":" + strings.ToLower(w.Data.Status)
	} else {
		ev.ID = FallbackEventID(body)
	}
	if w.Event == "charge.completed" {
		ev.Outcome = w.Data.outcome()
	}
	if ev.Outcome != OutcomeUnhandled && ev.Reference == "" {
		return nil, fmt.Errorf("%w: missing data.tx_ref", ErrMalformedPayload)
	}
	return ev, nil
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) Initialize(ctx context.Context, checkout Checkout) (*CheckoutResult, error) {
	if f.SecretKey == "" {
		return nil, fmt.Errorf("flutterwave: %w", ErrNotConfigured)
	}

	payload := map[string]any{
		"tx_ref":       checkout.Reference,
		"amount":       checkout.Amount.StringFixed(2),
		"currency":     checkout.Currency,
		"redirect_url": checkout.CallbackURL,
		"customer": map[string]string{
			"email": checkout.Email,
			"name":  checkout.CustomerName,
		},
		"customizations": map[string]string{
			"title":       "BizHub",
			"description": checkout.Description,
		},
	}
	raw, err := doJSON(ctx, f.HTTPClient, http.MethodPost, f.BaseURL+"/payments", f.SecretKey, payload)
	if err != nil {
		return nil, fmt.Errorf("flutterwave initialize: %w", err)
	}

	var resp flutterwaveEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("flutterwave initialize: %w", err)
	}
	var data struct {
		Link string `json:"link"`
	}
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &data)
	}
	if resp.Status != "success" || data.Link == "" {
		return nil, fmt.Errorf("flutterwave initialize rejected: %s", resp.Message)
	}
	return &CheckoutResult{RedirectURL: data.Link, Raw: raw}, nil
}

func (f *Flutterwave) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	if f.SecretKey == "" {
		return nil, fmt.Errorf("flutterwave: %w", ErrNotConfigured)
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, errors.New("reference is required")
	}

	endpoint := f.BaseURL + "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(ref)
	raw, err := doJSON(ctx, f.HTTPClient, http.MethodGet, endpoint, f.SecretKey, nil)
	if err != nil {
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}
	var resp flutterwaveEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}
	var charge flutterwaveCharge
	if err := json.Unmarshal(resp.Data, &charge); err != nil {
		return nil, fmt.Errorf("flutterwave verify: %w", err)
	}

	v := &Verification{
		Reference:        charge.reference(),
		GatewayReference: charge.ID.String(),
		Amount:           parseAmount(charge.Amount),
		Currency:         charge.Currency,
		Message:          charge.Message,
		Outcome:          charge.outcome(),
		Raw:              raw,
	}
	if resp.Status != "success" && v.Outcome == OutcomeSuccess {
		v.Outcome = OutcomeUnhandled
	}
	return v, nil
}

func parseAmount(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
