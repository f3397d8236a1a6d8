package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/localbiz/bizhub/app/models"
)

const (
	GatewayKeyPrefix  = "payment_gateway:"
	DefaultGatewayTTL = 60 * time.Second
)

// GatewayLoader reads a gateway switchboard row from the database.
type GatewayLoader func(ctx context.Context, slug string) (*models.PaymentGateway, error)

// GatewayCache fronts the payment_gateways table with short-lived Redis
// copies. Only found rows are cached; loader errors pass through untouched.
type GatewayCache struct {
	client *redis.Client
	ttl    time.Duration
	load   GatewayLoader
}

func NewGatewayCache(client *redis.Client, ttl time.Duration, load GatewayLoader) *GatewayCache {
	if ttl <= 0 {
		ttl = DefaultGatewayTTL
	}
	return &GatewayCache{client: client, ttl: ttl, load: load}
}

func (c *GatewayCache) GetBySlug(ctx context.Context, slug string) (*models.PaymentGateway, error) {
	if c.client == nil {
		return c.load(ctx, slug)
	}

	key := GatewayKeyPrefix + slug
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var gw models.PaymentGateway
		if uerr := json.Unmarshal(raw, &gw); uerr == nil {
			return &gw, nil
		}
		log.Warnf("[Cache] Dropping undecodable gateway entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Warnf("[Cache] Gateway lookup for %s bypassing Redis: %v", slug, err)
		return c.load(ctx, slug)
	}

	gw, err := c.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if data, merr := json.Marshal(gw); merr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			log.Warnf("[Cache] Failed to cache gateway %s: %v", slug, serr)
		}
	}
	return gw, nil
}

// Invalidate drops the cached row so the next lookup hits the database.
func (c *GatewayCache) Invalidate(ctx context.Context, slug string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, GatewayKeyPrefix+slug).Err()
}
