package payment

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrUnsupportedPayable  = errors.New("unsupported payable")
	ErrAlreadyFinal        = errors.New("transaction already in a final state")
	ErrAmountMismatch      = errors.New("paid amount does not match transaction")

	ErrUnknownGateway    = errors.New("unknown payment gateway")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrMalformedEvent    = errors.New("malformed webhook event")
	ErrEventNotFound     = errors.New("webhook event not found")
	ErrVerificationError = errors.New("gateway verification failed")
	ErrGatewayMismatch   = errors.New("event gateway does not match transaction")
)
