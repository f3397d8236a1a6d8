package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdCampaign is a paid promotion for a business listing.
type AdCampaign struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	BusinessID uint            `gorm:"not null;index" json:"business_id"`
	Name       string          `gorm:"type:varchar(150);not null;default:''" json:"name"`
	Budget     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"budget"`
	IsPaid     bool            `gorm:"default:false;index" json:"is_paid"`
	IsActive   bool            `gorm:"default:false;index" json:"is_active"`
	StartsAt   *time.Time      `gorm:"type:timestamp;default:null" json:"starts_at,omitempty"`
	EndsAt     *time.Time      `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ExtendDuration pushes ends_at out by days. A campaign without an end date
// is extended from now.
func (c *AdCampaign) ExtendDuration(now time.Time, days int) {
	base := now
	if c.EndsAt != nil {
		base = *c.EndsAt
	}
	end := base.AddDate(0, 0, days)
	c.EndsAt = &end
}
