package repository

import (
	"errors"

	"github.com/localbiz/bizhub/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a new referral repository instance
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(referral *models.CustomerReferral) error {
	return r.db.Create(referral).Error
}

func (r *referralRepository) GetByReferredBusinessID(businessID uint) (*models.CustomerReferral, error) {
	var ref models.CustomerReferral
	if err := r.db.Where("referred_business_id = ?", businessID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepository) Save(referral *models.CustomerReferral) error {
	return r.db.Save(referral).Error
}

func (r *referralRepository) GetWalletByUserID(userID uint) (*models.ReferralWallet, error) {
	var w models.ReferralWallet
	if err := r.db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreateWalletForUpdate returns the referrer's wallet locked for update,
// creating an empty one first when none exists.
func (r *referralRepository) GetOrCreateWalletForUpdate(userID uint) (*models.ReferralWallet, error) {
	var w models.ReferralWallet
	err := forUpdate(r.db).Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.ReferralWallet{
		UserID:         userID,
		Balance:        decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	if err := forUpdate(r.db).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *referralRepository) SaveWallet(wallet *models.ReferralWallet) error {
	return r.db.Save(wallet).Error
}

func (r *referralRepository) CommissionExistsForTransaction(transactionID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.CustomerReferralTransaction{}).
		Where("transaction_id = ? AND type = ?", transactionID, models.ReferralTxCommission).
		Count(&count).Error
	return count > 0, err
}

func (r *referralRepository) AppendTransaction(entry *models.CustomerReferralTransaction) error {
	return r.db.Create(entry).Error
}

func (r *referralRepository) ListTransactions(walletID uint) ([]models.CustomerReferralTransaction, error) {
	var rows []models.CustomerReferralTransaction
	err := r.db.Where("referral_wallet_id = ?", walletID).Order("id ASC").Find(&rows).Error
	return rows, err
}
