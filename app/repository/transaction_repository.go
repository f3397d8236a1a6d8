package repository

import (
	"strings"
	"time"

	"github.com/localbiz/bizhub/app/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *transactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.First(&tx, id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *transactionRepository) GetByIDForUpdate(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := forUpdate(r.db).First(&tx, id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) GetByReference(reference string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("reference = ?", reference).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByAnyReference matches either our reference or the gateway-assigned one.
func (r *transactionRepository) FindByAnyReference(reference string) (*models.Transaction, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var tx models.Transaction
	err := r.db.Where("reference = ? OR gateway_reference = ?", ref, ref).
		Order("id ASC").
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkCompleted sets status and paid_at only while paid_at is still empty.
// It reports whether this call made the transition.
func (r *transactionRepository) MarkCompleted(id uint, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND paid_at IS NULL AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":  models.TransactionStatusCompleted,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed moves a pending transaction to failed. Terminal rows are left untouched.
func (r *transactionRepository) MarkFailed(id uint, reason string) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         models.TransactionStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveGatewayResult stores the gateway-assigned reference and raw response for audit.
func (r *transactionRepository) SaveGatewayResult(id uint, gatewayReference string, response []byte) error {
	updates := map[string]interface{}{}
	if ref := strings.TrimSpace(gatewayReference); ref != "" {
		updates["gateway_reference"] = ref
	}
	if len(response) > 0 {
		updates["gateway_response"] = datatypes.JSON(response)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates).Error
}
