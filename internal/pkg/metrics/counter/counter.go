package counter

import (
	"context"
	"strconv"

	"github.com/localbiz/bizhub/internal/pkg/cache"
)

// Webhook delivery outcomes. Each outcome is a Redis hash keyed by gateway.
const (
	WebhookAccepted  = "accepted"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)

const webhookKeyPrefix = "metrics:webhooks:"

var webhookOutcomes = []string{WebhookAccepted, WebhookDuplicate, WebhookIgnored, WebhookRejected}

// AddWebhook increments the delivery counter for a gateway. It is a no-op
// without Redis.
func AddWebhook(ctx context.Context, gateway, outcome string) error {
	rdb := cache.GetClient()
	if rdb == nil {
		return nil
	}
	return rdb.HIncrBy(ctx, webhookKeyPrefix+outcome, gateway, 1).Err()
}

// WebhookCounts returns outcome -> gateway -> deliveries since the counters
// were last reset.
func WebhookCounts(ctx context.Context) (map[string]map[string]int64, error) {
	out := make(map[string]map[string]int64, len(webhookOutcomes))
	rdb := cache.GetClient()
	for _, outcome := range webhookOutcomes {
		out[outcome] = map[string]int64{}
		if rdb == nil {
			continue
		}
		data, err := rdb.HGetAll(ctx, webhookKeyPrefix+outcome).Result()
		if err != nil {
			return nil, err
		}
		for gateway, v := range data {
			n, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil {
				continue
			}
			out[outcome][gateway] = n
		}
	}
	return out, nil
}

// ResetWebhookCounts clears every outcome hash.
func ResetWebhookCounts(ctx context.Context) error {
	rdb := cache.GetClient()
	if rdb == nil {
		return nil
	}
	keys := make([]string, 0, len(webhookOutcomes))
	for _, outcome := range webhookOutcomes {
		keys = append(keys, webhookKeyPrefix+outcome)
	}
	return rdb.Del(ctx, keys...).Err()
}
