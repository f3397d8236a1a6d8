package models

import "time"

// Gateway slugs known to the payment core.
const (
	GatewayPaystack     = "paystack"
	GatewayFlutterwave  = "flutterwave"
	GatewayMidtrans     = "midtrans"
	GatewayBankTransfer = "bank_transfer"
	GatewayWallet       = "wallet"
)

// PaymentGateway is the operator-managed switchboard for a gateway. Secrets
// live in configuration, never in this table.
type PaymentGateway struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Slug         string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"slug"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	IsEnabled    bool      `gorm:"not null" json:"is_enabled"`
	Instructions string    `gorm:"type:text" json:"instructions,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsUsable reports whether new payments may be started on this gateway.
func (g *PaymentGateway) IsUsable() bool {
	return g.IsActive && g.IsEnabled
}
