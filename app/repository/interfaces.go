package repository

import (
	"context"
	"time"

	"github.com/localbiz/bizhub/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// BusinessRepository defines the interface for business-related database operations
type BusinessRepository interface {
	Create(business *models.Business) error
	GetByID(id uint) (*models.Business, error)
	GetByIDForUpdate(id uint) (*models.Business, error)
	Save(business *models.Business) error
}

// TransactionRepository defines the interface for payment transaction operations.
// Rows are never deleted.
type TransactionRepository interface {
	Create(tx *models.Transaction) error
	GetByID(id uint) (*models.Transaction, error)
	GetByIDForUpdate(id uint) (*models.Transaction, error)
	GetByReference(reference string) (*models.Transaction, error)
	FindByAnyReference(reference string) (*models.Transaction, error)
	MarkCompleted(id uint, paidAt time.Time) (bool, error)
	MarkFailed(id uint, reason string) (bool, error)
	SaveGatewayResult(id uint, gatewayReference string, response []byte) error
}

// WebhookEventRepository defines the interface for the webhook event ledger
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetByID(id uint) (*models.WebhookEvent, error)
	MarkProcessed(id uint, at time.Time) error
	MarkFailed(id uint, message string) error
	IncrementRetry(id uint) error
	ListFailed(limit int) ([]models.WebhookEvent, error)
}

// SubscriptionRepository defines the interface for subscriptions and plans
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByIDForUpdate(id uint) (*models.Subscription, error)
	Save(sub *models.Subscription) error
	CreatePlan(plan *models.SubscriptionPlan) error
	GetPlan(id uint) (*models.SubscriptionPlan, error)
}

// AdCampaignRepository defines the interface for ad campaign operations
type AdCampaignRepository interface {
	Create(campaign *models.AdCampaign) error
	GetByID(id uint) (*models.AdCampaign, error)
	GetByIDForUpdate(id uint) (*models.AdCampaign, error)
	Save(campaign *models.AdCampaign) error
}

// WalletRepository defines the interface for business wallets and their audit trail
type WalletRepository interface {
	Create(wallet *models.Wallet) error
	GetByID(id uint) (*models.Wallet, error)
	GetByIDForUpdate(id uint) (*models.Wallet, error)
	GetByBusinessIDForUpdate(businessID uint) (*models.Wallet, error)
	Save(wallet *models.Wallet) error
	AppendTransaction(entry *models.WalletTransaction) error
	ListTransactions(walletID uint) ([]models.WalletTransaction, error)
}

// ReferralRepository defines the interface for customer referrals and commission wallets
type ReferralRepository interface {
	Create(referral *models.CustomerReferral) error
	GetByReferredBusinessID(businessID uint) (*models.CustomerReferral, error)
	Save(referral *models.CustomerReferral) error
	GetWalletByUserID(userID uint) (*models.ReferralWallet, error)
	GetOrCreateWalletForUpdate(userID uint) (*models.ReferralWallet, error)
	SaveWallet(wallet *models.ReferralWallet) error
	CommissionExistsForTransaction(transactionID uint) (bool, error)
	AppendTransaction(entry *models.CustomerReferralTransaction) error
	ListTransactions(walletID uint) ([]models.CustomerReferralTransaction, error)
}

// PaymentGatewayRepository defines the interface for gateway switchboard rows
type PaymentGatewayRepository interface {
	Upsert(gateway *models.PaymentGateway) error
	GetBySlug(slug string) (*models.PaymentGateway, error)
	List() ([]models.PaymentGateway, error)
	ListUsable() ([]models.PaymentGateway, error)
}

// Repositories struct holds all repository instances bound to one gorm handle
type Repositories struct {
	db *gorm.DB

	User           UserRepository
	Business       BusinessRepository
	Transaction    TransactionRepository
	WebhookEvent   WebhookEventRepository
	Subscription   SubscriptionRepository
	AdCampaign     AdCampaignRepository
	Wallet         WalletRepository
	Referral       ReferralRepository
	PaymentGateway PaymentGatewayRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:             db,
		User:           NewUserRepository(db),
		Business:       NewBusinessRepository(db),
		Transaction:    NewTransactionRepository(db),
		WebhookEvent:   NewWebhookEventRepository(db),
		Subscription:   NewSubscriptionRepository(db),
		AdCampaign:     NewAdCampaignRepository(db),
		Wallet:         NewWalletRepository(db),
		Referral:       NewReferralRepository(db),
		PaymentGateway: NewPaymentGatewayRepository(db),
	}
}

// DB exposes the underlying handle.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// WithContext returns repositories whose queries carry ctx.
func (r *Repositories) WithContext(ctx context.Context) *Repositories {
	return NewRepositories(r.db.WithContext(ctx))
}

// InTransaction runs fn inside one database transaction. Every repository handed
// to fn shares the transaction; returning an error rolls back all writes.
func (r *Repositories) InTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
