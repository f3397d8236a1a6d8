package repository

import (
	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentGatewayRepository struct {
	db *gorm.DB
}

// NewPaymentGatewayRepository creates a new payment gateway repository instance
func NewPaymentGatewayRepository(db *gorm.DB) PaymentGatewayRepository {
	return &paymentGatewayRepository{db: db}
}

func (r *paymentGatewayRepository) Upsert(gateway *models.PaymentGateway) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"is_active",
			"is_enabled",
			"instructions",
			"updated_at",
		}),
	}).Create(gateway).Error; err != nil {
		return err
	}

	return r.db.Where("slug = ?", gateway.Slug).First(gateway).Error
}

func (r *paymentGatewayRepository) GetBySlug(slug string) (*models.PaymentGateway, error) {
	var g models.PaymentGateway
	if err := r.db.Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *paymentGatewayRepository) List() ([]models.PaymentGateway, error) {
	var gateways []models.PaymentGateway
	err := r.db.Order("slug ASC").Find(&gateways).Error
	return gateways, err
}

func (r *paymentGatewayRepository) ListUsable() ([]models.PaymentGateway, error) {
	var gateways []models.PaymentGateway
	err := r.db.Where("is_active = ? AND is_enabled = ?", true, true).Order("slug ASC").Find(&gateways).Error
	return gateways, err
}
