package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis"

	"github.com/localbiz/bizhub/app/controllers"
	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/auditarchive"
	"github.com/localbiz/bizhub/internal/pkg/cache"
	"github.com/localbiz/bizhub/internal/pkg/database"
	"github.com/localbiz/bizhub/internal/pkg/env"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
	"github.com/localbiz/bizhub/internal/pkg/hcaptcha"
	"github.com/localbiz/bizhub/internal/pkg/jobqueue"
	"github.com/localbiz/bizhub/internal/pkg/mail"
	"github.com/localbiz/bizhub/internal/pkg/payment"
	"github.com/localbiz/bizhub/internal/pkg/router"
	"github.com/localbiz/bizhub/internal/pkg/session"
	"github.com/localbiz/bizhub/internal/pkg/statistics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app, jobs := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fiberlog.Info("[App] Shutting down")
	jobs.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		fiberlog.Errorf("[App] Shutdown: %v", err)
	}
}

// NewApplication wires the payment core and returns the app together with
// the background job manager it started.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	session.NewSessionStore()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos, err := repository.GetGlobalRepositories()
	if err != nil {
		log.Fatalf("repositories: %v", err)
	}

	gateways := cache.NewGatewayCache(cache.GetClient(), env.GetDuration("GATEWAY_CACHE_TTL", cache.DefaultGatewayTTL),
		func(ctx context.Context, slug string) (*models.PaymentGateway, error) {
			return repos.WithContext(ctx).PaymentGateway.GetBySlug(slug)
		})

	jobs := jobqueue.GetManager()
	var observer payment.Observer = payment.NopObserver{}
	if cache.GetClient() != nil {
		archiver := newAuditArchiver()
		var webhookArchiver jobqueue.WebhookArchiver
		if archiver != nil {
			webhookArchiver = archiver
		}
		jobqueue.RegisterPaymentProcessors(jobs.GetQueue(), repos, mail.NewSMTPMailerFromEnv(), webhookArchiver)
		observer = jobqueue.NewPaymentObserver(jobs.GetQueue(), archiver != nil)
	}

	svc := payment.NewService(repos, gateway.NewRegistryFromEnv(), payment.ConfigFromEnv(), payment.Options{
		Observer: observer,
		Gateways: gateways,
	})
	controllers.InitializePaymentController(svc, repos)
	controllers.SetGatewayInvalidator(gateways)
	controllers.SetStatisticsService(statistics.NewService(db, cache.GetClient(), env.GetDuration("STATS_CACHE_TTL", statistics.CacheExpiration)))
	controllers.SetCaptchaVerifier(hcaptcha.NewVerifierFromEnv())

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
		// webhooks arrive through the load balancer
		ProxyHeader: env.GetEnv("PROXY_HEADER", ""),
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}))

	router.InstallRouter(app, router.Config{
		LimiterStorage: newLimiterStorage(),
		LimiterMax:     env.GetInt("PAYMENT_RATE_LIMIT", 20),
	})

	jobs.Start()
	return app, jobs
}

// newAuditArchiver returns nil when archiving is disabled or unreachable.
func newAuditArchiver() *auditarchive.Client {
	cfg, err := auditarchive.LoadConfig()
	if err != nil {
		fiberlog.Errorf("[AuditArchive] %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := auditarchive.NewClient(ctx, cfg)
	if err != nil {
		fiberlog.Errorf("[AuditArchive] webhook archiving disabled: %v", err)
		return nil
	}
	fiberlog.Infof("[AuditArchive] archiving webhooks to bucket %s", cfg.BucketName)
	return client
}

// newLimiterStorage keeps rate limit counters in Redis database 2 so every
// instance shares them. Without Redis the limiter falls back to memory.
func newLimiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}
	host, portStr, err := net.SplitHostPort(client.Options().Addr)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: client.Options().Password,
		Database: 2,
	})
}
