package models

import "time"

// Business is the listing owner. The payment core only reads verification and
// writes premium flags.
type Business struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OwnerID      uint       `gorm:"not null;index" json:"owner_id"`
	Name         string     `gorm:"type:varchar(191);not null" json:"name"`
	IsVerified   bool       `gorm:"default:false;index" json:"is_verified"`
	IsPremium    bool       `gorm:"default:false;index" json:"is_premium"`
	PremiumUntil *time.Time `gorm:"type:timestamp;default:null" json:"premium_until,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GrantPremiumUntil marks the business premium. Premium is never shortened.
func (b *Business) GrantPremiumUntil(until time.Time) {
	b.IsPremium = true
	if b.PremiumUntil == nil || until.After(*b.PremiumUntil) {
		u := until
		b.PremiumUntil = &u
	}
}
