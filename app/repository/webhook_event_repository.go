package repository

import (
	"time"

	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook ledger repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless (gateway, event_id) is already
// stored. It returns whether a row was created and the stored row either way.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("gateway = ? AND event_id = ?", event.Gateway, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	if err := r.db.First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *webhookEventRepository) MarkProcessed(id uint, at time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.WebhookStatusProcessed,
		"processed_at":  at,
		"error_message": "",
	}).Error
}

func (r *webhookEventRepository) MarkFailed(id uint, message string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.WebhookStatusFailed,
		"error_message": message,
	}).Error
}

func (r *webhookEventRepository) IncrementRetry(id uint) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

// ListFailed returns the oldest failed events first.
func (r *webhookEventRepository) ListFailed(limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.WebhookEvent
	err := r.db.Where("status = ?", models.WebhookStatusFailed).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
