package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
)

const (
	CacheKeyPayments = "statistics:payments"
	CacheExpiration  = 5 * time.Minute
)

// PaymentStats is the operator dashboard summary. "Today" is the UTC day.
type PaymentStats struct {
	PendingTransactions int64     `json:"pending_transactions"`
	CompletedToday      int64     `json:"completed_today"`
	FailedToday         int64     `json:"failed_today"`
	RevenueToday        string    `json:"revenue_today"`
	FailedWebhooks      int64     `json:"failed_webhooks"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Service computes PaymentStats and keeps a short-lived copy in Redis.
// A nil client disables caching.
type Service struct {
	db     *gorm.DB
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewService(db *gorm.DB, client *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = CacheExpiration
	}
	return &Service{db: db, client: client, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns cached stats when fresh and recomputes otherwise.
func (s *Service) Get(ctx context.Context) (*PaymentStats, error) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, CacheKeyPayments).Bytes()
		switch {
		case err == nil:
			var stats PaymentStats
			if uerr := json.Unmarshal(raw, &stats); uerr == nil {
				return &stats, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warnf("[Statistics] cache read failed: %v", err)
		}
	}

	stats, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.client != nil {
		if data, merr := json.Marshal(stats); merr == nil {
			if serr := s.client.Set(ctx, CacheKeyPayments, data, s.ttl).Err(); serr != nil {
				log.Warnf("[Statistics] cache write failed: %v", serr)
			}
		}
	}
	return stats, nil
}

// Compute reads the stats straight from the database.
func (s *Service) Compute(ctx context.Context) (*PaymentStats, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	stats := &PaymentStats{GeneratedAt: now}
	if err := db.Model(&models.Transaction{}).
		Where("status = ?", models.TransactionStatusPending).
		Count(&stats.PendingTransactions).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Transaction{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.TransactionStatusCompleted, dayStart, dayEnd).
		Count(&stats.CompletedToday).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Transaction{}).
		Where("status = ? AND updated_at >= ? AND updated_at < ?", models.TransactionStatusFailed, dayStart, dayEnd).
		Count(&stats.FailedToday).Error; err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	row := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.TransactionStatusCompleted, dayStart, dayEnd).
		Row()
	if err := row.Scan(&revenue); err != nil {
		return nil, err
	}
	stats.RevenueToday = revenue.StringFixed(2)

	if err := db.Model(&models.WebhookEvent{}).
		Where("status = ?", models.WebhookStatusFailed).
		Count(&stats.FailedWebhooks).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// Invalidate drops the cached copy so the next Get recomputes.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, CacheKeyPayments).Err()
}
