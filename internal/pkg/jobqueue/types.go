package jobqueue

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobTypePaymentNotification JobType = "payment_notification"
	JobTypeWebhookArchive      JobType = "webhook_archive"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is the JSON document stored under JobKeyPrefix+ID.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

const (
	NotifyCompleted = "completed"
	NotifyFailed    = "failed"
)

// PaymentNotificationPayload tells the payer about a terminal transaction.
type PaymentNotificationPayload struct {
	TransactionID uint   `json:"transaction_id"`
	Reference     string `json:"reference"`
	Kind          string `json:"kind"`
}

func (p PaymentNotificationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": p.TransactionID,
		"reference":      p.Reference,
		"kind":           p.Kind,
	}
}

// WebhookArchivePayload points at a webhook ledger row to copy to S3.
type WebhookArchivePayload struct {
	EventID uint   `json:"event_id"`
	Gateway string `json:"gateway"`
}

func (p WebhookArchivePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id": p.EventID,
		"gateway":  p.Gateway,
	}
}

// DecodePayload converts a job payload into T. Payloads read back from Redis
// carry float64 numbers, so the map goes through JSON once more.
func DecodePayload[T any](payload map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status, j.UpdatedAt, j.ProcessedAt = JobStatusProcessing, now, &now
}

func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status, j.UpdatedAt, j.CompletedAt = JobStatusCompleted, now, &now
	j.ErrorMsg = ""
}

// MarkAsFailed records the attempt; RetryCount counts failed attempts.
func (j *Job) MarkAsFailed(reason string) {
	j.Status, j.UpdatedAt, j.ErrorMsg = JobStatusFailed, time.Now(), reason
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.Status, j.UpdatedAt = JobStatusRetrying, time.Now()
}
