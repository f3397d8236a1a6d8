package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PAYMENT_CURRENCY", "ngn")
	t.Setenv("PAYMENT_MIN_AMOUNT", "250")
	t.Setenv("REFERRAL_COMMISSION_RATE", "-4")
	t.Setenv("PUBLIC_DOMAIN", "https://bizhub.ng/")
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "20")
	t.Setenv("WEBHOOK_DEBUG_LOG", "true")

	cfg := ConfigFromEnv()
	assert.Equal(t, "NGN", cfg.Currency)
	assert.True(t, cfg.MinAmount.Equal(decimal.NewFromInt(250)))
	assert.True(t, cfg.CommissionRate.Equal(decimal.NewFromInt(defaultCommissionRate)))
	assert.Equal(t, "https://bizhub.ng", cfg.PublicURL)
	assert.Equal(t, 20*time.Second, cfg.GatewayTimeout)
	assert.True(t, cfg.DebugLog)

	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, ConfigFromEnv().GatewayTimeout)
}
