package session

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/localbiz/bizhub/internal/pkg/cache"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

var sessionStore *session.Store

// NewSessionStore creates the Redis backed session store. Sessions live in
// Redis database 1; the cache uses database 0.
func NewSessionStore() *session.Store {
	cacheClient := cache.GetClient()
	if cacheClient == nil {
		log.Warn("[Session] No Redis client, keeping sessions in memory")
		return NewSessionStoreWithStorage(nil)
	}

	host := env.GetEnv("CACHE_HOST", "localhost")
	port := 6379
	if v, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379")); err == nil {
		port = v
	}
	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	password := cacheClient.Options().Password

	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
	return NewSessionStoreWithStorage(storage)
}

// NewSessionStoreWithStorage installs a store on the given storage. A nil
// storage keeps sessions in process memory.
func NewSessionStoreWithStorage(storage fiber.Storage) *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     time.Hour * 1,
		KeyLookup:      "cookie:session_id",
	})
	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}
