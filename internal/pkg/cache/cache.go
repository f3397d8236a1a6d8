package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/localbiz/bizhub/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis server. When Redis is
// unreachable the client stays nil and Redis-backed features are disabled.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	c := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetInt("CACHE_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	pong, err := c.Ping(pingCtx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s:%s, continuing without it: %v", host, port, err)
		_ = c.Close()
		client = nil
		return
	}
	log.Infof("[Cache] Connected to Redis: %s", pong)
	client = c
}

// SetClient replaces the shared client; tests use it to inject an isolated DB.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client, or nil when SetupCache has not
// connected.
func GetClient() *redis.Client {
	return client
}
