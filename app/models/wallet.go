package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletTxDeposit        = "deposit"
	WalletTxPayment        = "payment"
	WalletTxCreditPurchase = "credit_purchase"
)

// Wallet holds a business's prepaid balance and credit counters.
type Wallet struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	BusinessID   uint            `gorm:"not null;uniqueIndex" json:"business_id"`
	Balance      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance"`
	AdCredits    int             `gorm:"not null;default:0" json:"ad_credits"`
	QuoteCredits int             `gorm:"not null;default:0" json:"quote_credits"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Credits returns the counter for a credit kind.
func (w *Wallet) Credits(kind CreditKind) int {
	if kind == CreditKindQuote {
		return w.QuoteCredits
	}
	return w.AdCredits
}

// AddCredits increments the counter for a credit kind.
func (w *Wallet) AddCredits(kind CreditKind, n int) {
	if kind == CreditKindQuote {
		w.QuoteCredits += n
		return
	}
	w.AdCredits += n
}

// WalletTransaction is the audit row appended for every wallet mutation.
// Amount is signed: credits are positive, debits negative. For credit
// purchases Amount is the number of credits and the cash balance is unchanged.
type WalletTransaction struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	WalletID      uint            `gorm:"not null;index" json:"wallet_id"`
	TransactionID *uint           `gorm:"index" json:"transaction_id,omitempty"`
	Type          string          `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	CreditKind    CreditKind      `gorm:"type:varchar(32);not null;default:''" json:"credit_kind,omitempty"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_after"`
	CreditsBefore int             `gorm:"not null;default:0" json:"credits_before"`
	CreditsAfter  int             `gorm:"not null;default:0" json:"credits_after"`
	Description   string          `gorm:"type:varchar(255);default:''" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
