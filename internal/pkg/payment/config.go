package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/localbiz/bizhub/internal/pkg/env"
)

const (
	defaultCurrency       = "NGN"
	defaultMinAmount      = 100
	defaultCommissionRate = 10
	defaultGatewayTimeout = 15 * time.Second
)

// Config holds the static payment settings. Gateway secrets live on the
// adapters, not here.
type Config struct {
	Currency string
	// MinAmount is the smallest amount Initialize accepts.
	MinAmount decimal.Decimal
	// CommissionRate is a percentage of the transaction amount.
	CommissionRate decimal.Decimal
	GatewayTimeout time.Duration
	// PublicURL prefixes gateway callback URLs.
	PublicURL string
	// DebugLog enables redacted webhook payload logging.
	DebugLog bool
}

// DefaultConfig is used by tests and as the base for ConfigFromEnv.
func DefaultConfig() Config {
	return Config{
		Currency:       defaultCurrency,
		MinAmount:      decimal.NewFromInt(defaultMinAmount),
		CommissionRate: decimal.NewFromInt(defaultCommissionRate),
		GatewayTimeout: defaultGatewayTimeout,
	}
}

func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Currency = strings.ToUpper(strings.TrimSpace(env.GetEnv("PAYMENT_CURRENCY", defaultCurrency)))
	cfg.MinAmount = decimalFromEnv("PAYMENT_MIN_AMOUNT", cfg.MinAmount)
	cfg.CommissionRate = decimalFromEnv("REFERRAL_COMMISSION_RATE", cfg.CommissionRate)
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(env.GetEnv("PUBLIC_DOMAIN", "")), "/")
	cfg.DebugLog = env.GetEnv("WEBHOOK_DEBUG_LOG", "false") == "true"

	if raw := strings.TrimSpace(env.GetEnv("PAYMENT_GATEWAY_TIMEOUT", "")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.GatewayTimeout = d
		} else if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.GatewayTimeout = time.Duration(secs) * time.Second
		} else {
			log.Warnf("[Payment] ignoring invalid PAYMENT_GATEWAY_TIMEOUT %q", raw)
		}
	}
	return cfg
}

func decimalFromEnv(key string, def decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		log.Warnf("[Payment] ignoring invalid %s %q", key, raw)
		return def
	}
	return d
}
