package models

import "time"

const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookEvent stores gateway webhook deliveries. (gateway, event_id) is the
// idempotency key: redeliveries never create a second row.
type WebhookEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Gateway        string     `gorm:"type:varchar(32);not null;index:ux_webhook_events_gateway_event,unique,priority:1;index" json:"gateway"`
	EventID        string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_gateway_event,unique,priority:2" json:"event_id"`
	EventType      string     `gorm:"type:varchar(100);not null;default:'';index" json:"event_type"`
	Reference      string     `gorm:"type:varchar(191);not null;default:'';index" json:"reference"`
	Payload        string     `gorm:"type:longtext;not null" json:"-"`
	SignatureValid bool       `gorm:"default:false" json:"signature_valid"`
	Status         string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount     int        `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsProcessed reports whether the event already produced its side effects.
func (e *WebhookEvent) IsProcessed() bool {
	return e.Status == WebhookStatusProcessed
}
