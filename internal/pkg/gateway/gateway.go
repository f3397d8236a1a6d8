// Package gateway adapts external payment gateways to one interface: webhook
// verification and parsing, checkout initialization and transaction lookup.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedPayload means the body is not a usable event for this gateway.
	ErrMalformedPayload = errors.New("malformed gateway payload")
	// ErrNotSupported is returned by adapters that lack an operation, such as
	// bank transfer webhooks.
	ErrNotSupported = errors.New("operation not supported by gateway")
	// ErrNotConfigured means the gateway secret or endpoint is missing.
	ErrNotConfigured = errors.New("gateway not configured")
	// ErrUnsupportedCheckout means the gateway cannot charge this currency or amount.
	ErrUnsupportedCheckout = errors.New("checkout not supported by gateway")
)

// Outcome is the normalized result a gateway reports for a charge.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeUnhandled Outcome = "unhandled"
)

// Event is a parsed webhook notification.
type Event struct {
	ID               string
	Type             string
	Reference        string
	GatewayReference string
	Outcome          Outcome
	Amount           decimal.Decimal
	Currency         string
	Message          string
}

// Checkout describes a payment to start on a redirect-style gateway.
type Checkout struct {
	Reference    string
	Amount       decimal.Decimal
	Currency     string
	Email        string
	CustomerName string
	Description  string
	CallbackURL  string
	// Instructions is operator text for offline gateways.
	Instructions string
}

// CheckoutResult is what a gateway returns for a started payment. Exactly one
// of RedirectURL and Instructions is set.
type CheckoutResult struct {
	RedirectURL      string
	Instructions     string
	GatewayReference string
	Raw              []byte
}

// Verification is the gateway's authoritative view of a transaction, fetched
// server to server.
type Verification struct {
	Reference        string
	GatewayReference string
	Outcome          Outcome
	Amount           decimal.Decimal
	Currency         string
	Message          string
	Raw              []byte
}

// Adapter is implemented once per gateway.
type Adapter interface {
	Slug() string
	// Verify checks the webhook signature. It never panics and returns false
	// on any missing input.
	Verify(body []byte, header func(string) string) bool
	ParseEvent(body []byte) (*Event, error)
	Initialize(ctx context.Context, checkout Checkout) (*CheckoutResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
}

// FallbackEventID derives a stable id for payloads that carry none.
func FallbackEventID(body []byte) string {
	sum := sha256.Sum256(body)
	return "hash:" + hex.EncodeToString(sum[:])
}
