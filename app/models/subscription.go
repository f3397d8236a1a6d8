package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// DefaultSubscriptionTermDays is used when neither the plan nor the row carries a term.
const DefaultSubscriptionTermDays = 30

// SubscriptionPlan is a purchasable listing plan.
type SubscriptionPlan struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	DurationDays int             `gorm:"not null;default:30" json:"duration_days"`
	IsActive     bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Subscription is a business's listing plan subscription.
type Subscription struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BusinessID   uint       `gorm:"not null;index" json:"business_id"`
	PlanID       uint       `gorm:"not null;index" json:"plan_id"`
	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	DurationDays int        `gorm:"not null;default:0" json:"duration_days"`
	StartsAt     *time.Time `gorm:"type:timestamp;default:null" json:"starts_at,omitempty"`
	EndsAt       *time.Time `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TermDays resolves the subscription term, preferring the plan's duration.
func (s *Subscription) TermDays(plan *SubscriptionPlan) int {
	if plan != nil && plan.DurationDays > 0 {
		return plan.DurationDays
	}
	if s.DurationDays > 0 {
		return s.DurationDays
	}
	return DefaultSubscriptionTermDays
}

// Renew extends the term from the later of now and the current end date, so
// unexpired time is never lost.
func (s *Subscription) Renew(now time.Time, days int) {
	base := now
	if s.EndsAt != nil && s.EndsAt.After(now) {
		base = *s.EndsAt
	}
	end := base.AddDate(0, 0, days)
	s.EndsAt = &end
	s.Status = SubscriptionStatusActive
	if s.StartsAt == nil {
		start := now
		s.StartsAt = &start
	}
}

// Activate turns a pending subscription live, keeping any term already on the row.
func (s *Subscription) Activate(now time.Time, days int) {
	s.Status = SubscriptionStatusActive
	if s.StartsAt == nil {
		start := now
		s.StartsAt = &start
	}
	if s.EndsAt == nil {
		end := s.StartsAt.AddDate(0, 0, days)
		s.EndsAt = &end
	}
}
