package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReferralStatusPending   = "pending"
	ReferralStatusQualified = "qualified"
)

const (
	ReferralTxCommission = "commission"
	ReferralTxWithdrawal = "withdrawal"
)

// CustomerReferral links a referring customer to the business they referred.
type CustomerReferral struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ReferrerUserID     uint       `gorm:"not null;index" json:"referrer_user_id"`
	ReferredBusinessID uint       `gorm:"not null;uniqueIndex" json:"referred_business_id"`
	Status             string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	QualifiedAt        *time.Time `gorm:"type:timestamp;default:null" json:"qualified_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferralWallet holds a referrer's earned commission.
type ReferralWallet struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance"`
	TotalEarned    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_earned"`
	TotalWithdrawn decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_withdrawn"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerReferralTransaction audits every referral wallet credit or debit.
// TransactionID is unique so a payment can pay commission at most once.
type CustomerReferralTransaction struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ReferralWalletID   uint            `gorm:"not null;index" json:"referral_wallet_id"`
	CustomerReferralID *uint           `gorm:"index" json:"customer_referral_id,omitempty"`
	TransactionID      *uint           `gorm:"uniqueIndex" json:"transaction_id,omitempty"`
	Type               string          `gorm:"type:varchar(16);not null;index" json:"type"`
	Amount             decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	BalanceBefore      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_before"`
	BalanceAfter       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance_after"`
	Description        string          `gorm:"type:varchar(255);default:''" json:"description"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
