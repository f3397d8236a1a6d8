package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Models lists every table owned by the payment core, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Business{},
		&models.SubscriptionPlan{},
		&models.Subscription{},
		&models.AdCampaign{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.PaymentGateway{},
		&models.Transaction{},
		&models.WebhookEvent{},
		&models.CustomerReferral{},
		&models.ReferralWallet{},
		&models.CustomerReferralTransaction{},
	}
}

// SetupDatabase connects using DB_DRIVER (mysql, postgres or sqlite) and
// retries while the database container is still starting.
func SetupDatabase() {
	driver := strings.ToLower(env.GetEnv("DB_DRIVER", "mysql"))

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = Open(driver)
		if err == nil {
			if env.GetEnv("DB_AUTO_MIGRATE", "false") == "true" {
				if err := AutoMigrate(DB); err != nil {
					log.Errorf("[Database] auto migrate failed: %v", err)
				}
			}
			log.Infof("[Database] connected using %s driver", driver)
			return
		}

		log.Warnf("[Database] failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Open builds a gorm handle for the given driver from the DB_* environment.
func Open(driver string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", ""),
		)
		return gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), cfg)
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_NAME", ""),
			env.GetEnv("DB_PORT", "5432"),
			env.GetEnv("DB_SSLMODE", "disable"),
		)
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		return OpenSQLite(env.GetEnv("DB_NAME", "bizhub.db"))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// OpenSQLite opens a single-connection SQLite database. Used for local
// development and by package tests with ":memory:".
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates all payment core tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
