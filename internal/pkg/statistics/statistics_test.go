package statistics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/database"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

var testNow = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

func seed(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	paidToday := testNow.Add(-2 * time.Hour)
	paidYesterday := testNow.Add(-26 * time.Hour)
	rows := []models.Transaction{
		{Reference: "T-1", Amount: decimal.NewFromInt(5000), Status: models.TransactionStatusCompleted, PaidAt: &paidToday},
		{Reference: "T-2", Amount: decimal.NewFromInt(2500), Status: models.TransactionStatusCompleted, PaidAt: &paidToday},
		{Reference: "T-3", Amount: decimal.NewFromInt(9000), Status: models.TransactionStatusCompleted, PaidAt: &paidYesterday},
		{Reference: "T-4", Amount: decimal.NewFromInt(1000), Status: models.TransactionStatusPending},
		{Reference: "T-5", Amount: decimal.NewFromInt(1000), Status: models.TransactionStatusPending},
	}
	for i := range rows {
		rows[i].UserID = 1
		rows[i].BusinessID = 1
		rows[i].Currency = "NGN"
		rows[i].PaymentMethod = models.GatewayPaystack
		rows[i].SetPayable(models.WalletPayable{ID: 1})
		rows[i].SetActivationIntent(models.DefaultIntentFor(models.PayableWallet))
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	require.NoError(t, db.Create(&models.WebhookEvent{Gateway: "paystack", EventID: "e-1", Payload: "{}", Status: models.WebhookStatusFailed}).Error)
	require.NoError(t, db.Create(&models.WebhookEvent{Gateway: "paystack", EventID: "e-2", Payload: "{}", Status: models.WebhookStatusProcessed}).Error)
	return db
}

func newTestService(db *gorm.DB, client *redis.Client) *Service {
	s := NewService(db, client, time.Minute)
	s.now = func() time.Time { return testNow }
	return s
}

func TestCompute(t *testing.T) {
	s := newTestService(seed(t), nil)

	stats, err := s.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PendingTransactions)
	assert.Equal(t, int64(2), stats.CompletedToday)
	assert.Equal(t, int64(0), stats.FailedToday)
	assert.Equal(t, "7500.00", stats.RevenueToday)
	assert.Equal(t, int64(1), stats.FailedWebhooks)
	assert.Equal(t, testNow, stats.GeneratedAt)
}

func TestGetWithoutRedisComputes(t *testing.T) {
	db := seed(t)
	s := newTestService(db, nil)

	stats, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PendingTransactions)
	assert.NoError(t, s.Invalidate(context.Background()))
}

func TestGetCachesInRedis(t *testing.T) {
	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{Addr: addr, Password: env.GetEnv("CACHE_PASSWORD", ""), DB: 12})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	require.NoError(t, client.FlushDB(context.Background()).Err())

	db := seed(t)
	s := newTestService(db, client)

	first, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.PendingTransactions)

	require.NoError(t, db.Model(&models.Transaction{}).Where("reference = ?", "T-5").
		Update("status", models.TransactionStatusFailed).Error)

	cached, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.PendingTransactions, "served from cache")

	require.NoError(t, s.Invalidate(context.Background()))
	fresh, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.PendingTransactions)
}
