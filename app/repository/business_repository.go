package repository

import (
	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
)

type businessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository creates a new business repository instance
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepository{db: db}
}

func (r *businessRepository) Create(business *models.Business) error {
	return r.db.Create(business).Error
}

func (r *businessRepository) GetByID(id uint) (*models.Business, error) {
	var b models.Business
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) GetByIDForUpdate(id uint) (*models.Business, error) {
	var b models.Business
	if err := forUpdate(r.db).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) Save(business *models.Business) error {
	return r.db.Save(business).Error
}
