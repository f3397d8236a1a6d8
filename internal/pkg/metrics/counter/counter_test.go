package counter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localbiz/bizhub/internal/pkg/cache"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

func TestWithoutRedis(t *testing.T) {
	prev := cache.GetClient()
	cache.SetClient(nil)
	t.Cleanup(func() { cache.SetClient(prev) })

	require.NoError(t, AddWebhook(context.Background(), "paystack", WebhookAccepted))
	counts, err := WebhookCounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 4)
	assert.Empty(t, counts[WebhookAccepted])
	assert.NoError(t, ResetWebhookCounts(context.Background()))
}

func TestCountsPerGatewayAndOutcome(t *testing.T) {
	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{Addr: addr, Password: env.GetEnv("CACHE_PASSWORD", ""), DB: 11})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())

	prev := cache.GetClient()
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(prev)
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	bg := context.Background()
	require.NoError(t, AddWebhook(bg, "paystack", WebhookAccepted))
	require.NoError(t, AddWebhook(bg, "paystack", WebhookAccepted))
	require.NoError(t, AddWebhook(bg, "flutterwave", WebhookRejected))
	require.NoError(t, AddWebhook(bg, "paystack", WebhookDuplicate))

	counts, err := WebhookCounts(bg)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"paystack": 2}, counts[WebhookAccepted])
	assert.Equal(t, map[string]int64{"flutterwave": 1}, counts[WebhookRejected])
	assert.Equal(t, map[string]int64{"paystack": 1}, counts[WebhookDuplicate])
	assert.Empty(t, counts[WebhookIgnored])

	require.NoError(t, ResetWebhookCounts(bg))
	counts, err = WebhookCounts(bg)
	require.NoError(t, err)
	assert.Empty(t, counts[WebhookAccepted])
}
