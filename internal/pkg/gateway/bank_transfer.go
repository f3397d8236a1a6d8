package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

// BankTransfer is an offline gateway: checkout returns payment instructions
// and completion is confirmed manually by an operator.
type BankTransfer struct {
	DefaultInstructions string
}

func NewBankTransferFromEnv() *BankTransfer {
	return &BankTransfer{
		DefaultInstructions: strings.TrimSpace(env.GetEnv("BANK_TRANSFER_INSTRUCTIONS", "")),
	}
}

func (b *BankTransfer) Slug() string { return models.GatewayBankTransfer }

func (b *BankTransfer) Verify([]byte, func(string) string) bool { return false }

func (b *BankTransfer) ParseEvent([]byte) (*Event, error) {
	return nil, fmt.Errorf("bank transfer webhooks: %w", ErrNotSupported)
}

func (b *BankTransfer) Initialize(_ context.Context, checkout Checkout) (*CheckoutResult, error) {
	text := strings.TrimSpace(checkout.Instructions)
	if text == "" {
		text = b.DefaultInstructions
	}
	if text == "" {
		return nil, fmt.Errorf("bank transfer instructions: %w", ErrNotConfigured)
	}

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Amount: %s %s\n", checkout.Amount.StringFixed(2), checkout.Currency)
	fmt.Fprintf(&sb, "Payment reference: %s", checkout.Reference)
	return &CheckoutResult{Instructions: sb.String()}, nil
}

func (b *BankTransfer) VerifyTransaction(context.Context, string) (*Verification, error) {
	return nil, fmt.Errorf("bank transfer verification: %w", ErrNotSupported)
}
