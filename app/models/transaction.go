package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is one payment attempt. Rows are created pending, move to a
// terminal status exactly once and are never deleted.
type Transaction struct {
	ID               uint                                    `gorm:"primaryKey" json:"id"`
	UserID           uint                                    `gorm:"not null;index" json:"user_id"`
	BusinessID       uint                                    `gorm:"not null;index" json:"business_id"`
	Reference        string                                  `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	GatewayReference *string                                 `gorm:"type:varchar(191);index" json:"gateway_reference,omitempty"`
	Amount           decimal.Decimal                         `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency         string                                  `gorm:"type:varchar(3);not null;default:'NGN'" json:"currency"`
	PaymentMethod    string                                  `gorm:"type:varchar(32);not null;index" json:"payment_method"`
	Status           string                                  `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaidAt           *time.Time                              `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	PayableType      PayableKind                             `gorm:"type:varchar(32);not null;index:idx_transactions_payable,priority:1" json:"payable_type"`
	PayableID        uint                                    `gorm:"not null;index:idx_transactions_payable,priority:2" json:"payable_id"`
	Intent           IntentKind                              `gorm:"type:varchar(40);not null" json:"intent"`
	Metadata         datatypes.JSONType[TransactionMetadata] `json:"metadata"`
	GatewayResponse  datatypes.JSON                          `json:"-"`
	FailureReason    string                                  `gorm:"type:text" json:"-"`
	CreatedAt        time.Time                               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                               `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the transaction has been confirmed.
func (t *Transaction) IsPaid() bool {
	return t.PaidAt != nil
}

// IsPending reports whether the transaction can still move to a terminal status.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// Payable returns the typed payable reference.
func (t *Transaction) Payable() (Payable, error) {
	return NewPayable(t.PayableType, t.PayableID)
}

// SetPayable stores a typed payable reference.
func (t *Transaction) SetPayable(p Payable) {
	t.PayableType = p.Kind()
	t.PayableID = p.PayableID()
}

// ActivationIntent decodes the stored intent and its metadata.
func (t *Transaction) ActivationIntent() (ActivationIntent, error) {
	return NewActivationIntent(t.Intent, t.Metadata.Data())
}

// SetActivationIntent stores the intent discriminator and its metadata.
func (t *Transaction) SetActivationIntent(intent ActivationIntent) {
	t.Intent = intent.Kind()
	t.Metadata = datatypes.NewJSONType(intent.Metadata())
}
