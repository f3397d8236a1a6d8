package repository

import (
	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository instance
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(wallet *models.Wallet) error {
	return r.db.Create(wallet).Error
}

func (r *walletRepository) GetByID(id uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) GetByIDForUpdate(id uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := forUpdate(r.db).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) GetByBusinessIDForUpdate(businessID uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := forUpdate(r.db).Where("business_id = ?", businessID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) Save(wallet *models.Wallet) error {
	return r.db.Save(wallet).Error
}

// AppendTransaction writes an audit row. Audit rows are never updated.
func (r *walletRepository) AppendTransaction(entry *models.WalletTransaction) error {
	return r.db.Create(entry).Error
}

func (r *walletRepository) ListTransactions(walletID uint) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := r.db.Where("wallet_id = ?", walletID).Order("id ASC").Find(&rows).Error
	return rows, err
}
