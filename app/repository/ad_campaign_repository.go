package repository

import (
	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
)

type adCampaignRepository struct {
	db *gorm.DB
}

// NewAdCampaignRepository creates a new ad campaign repository instance
func NewAdCampaignRepository(db *gorm.DB) AdCampaignRepository {
	return &adCampaignRepository{db: db}
}

func (r *adCampaignRepository) Create(campaign *models.AdCampaign) error {
	return r.db.Create(campaign).Error
}

func (r *adCampaignRepository) GetByID(id uint) (*models.AdCampaign, error) {
	var c models.AdCampaign
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *adCampaignRepository) GetByIDForUpdate(id uint) (*models.AdCampaign, error) {
	var c models.AdCampaign
	if err := forUpdate(r.db).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *adCampaignRepository) Save(campaign *models.AdCampaign) error {
	return r.db.Save(campaign).Error
}
