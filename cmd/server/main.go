package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"checkout/internal/app"
	"checkout/internal/config"
	"checkout/internal/fixtures"
	"checkout/internal/handler"
	internalRedis "checkout/internal/redis"
	"checkout/internal/repository"
	"checkout/internal/repository/memory"
	"checkout/internal/repository/mongo"
	"checkout/internal/repository/postgres"
	"checkout/internal/service"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	deps := infra{}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
		log.Println("Connected to PostgreSQL")
		deps.db = db
	case config.StorageMemory:
		log.Println("Using in-memory storage")
	}

	if cfg.Redis.Enabled {
		redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
		deps.redis = redisClient
	}

	if cfg.Mongo.Enabled {
		mongoClient, err := app.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer func() {
			_ = mongoClient.Disconnect(context.Background())
		}()
		logRepo := mongo.NewAPILogRepository(mongoClient, cfg.Mongo.Database)
		if err := logRepo.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create mongo indexes: %v", err)
		}
		log.Println("Connected to MongoDB (api log sink)")
		deps.logs = logRepo
	}

	// Wire dependencies.
	srv, err := wireServer(ctx, deps, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to wire server: %v", err)
	}

	srv.apiLogs.Start()

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	go srv.reaper.Run(workersCtx)
	go srv.outbox.Run(workersCtx)
	go srv.webhooks.Run(workersCtx)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	stopWorkers()
	srv.apiLogs.Close()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// infra holds the optional backing services.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	logs  repository.APILogRepository
}

type server struct {
	http     *http.Server
	apiLogs  *service.APILogService
	reaper   *service.Reaper
	outbox   *service.OutboxProcessor
	webhooks *service.WebhookDispatcher
}

// wireServer wires all dependencies and returns the HTTP server with its
// background workers.
func wireServer(ctx context.Context, deps infra, nrApp *newrelic.Application, cfg *config.Config) (*server, error) {
	// Initialize repositories.
	var (
		store   repository.Store
		logRepo repository.APILogRepository
	)
	if deps.db != nil {
		store = postgres.NewStore(deps.db)
		logRepo = postgres.NewAPILogRepository(deps.db)
	} else {
		memStore := memory.NewStore()
		store = memStore
		logRepo = memStore.APILogs()
	}
	if deps.logs != nil {
		logRepo = deps.logs
	}

	// Initialize Redis stores, falling back to in-process ones.
	var (
		lockStore        internalRedis.LockStoreInterface
		cacheStore       internalRedis.CacheStoreInterface
		idempotencyStore internalRedis.IdempotencyStoreInterface
	)
	if deps.redis != nil {
		lockStore = internalRedis.NewLockStore(deps.redis)
		cacheStore = internalRedis.NewCacheStore(deps.redis)
		idempotencyStore = internalRedis.NewIdempotencyStore(deps.redis)
	} else {
		lockStore = memory.NewLockStore()
		idempotencyStore = memory.NewIdempotencyStore()
	}

	commission, err := cfg.Payment.DefaultCommissionRate()
	if err != nil {
		return nil, err
	}
	policy := service.Policy{
		ChallengeCode:     cfg.Payment.ChallengeCode,
		ChallengeTTL:      cfg.Payment.ChallengeTTL,
		MaxAttempts:       cfg.Payment.MaxAttempts,
		DefaultCommission: commission,
		LockTTL:           cfg.Payment.LockTTL,
	}

	// Initialize services.
	notificationService := service.NewNotificationService()
	paymentService := service.NewPaymentService(store, lockStore, cacheStore, notificationService, nrApp, policy)
	testCardService := service.NewTestCardService(store.TestCards())
	apiLogService := service.NewAPILogService(logRepo, cfg.Payment.LogBuffer)
	metricsService := service.NewMetricsService(store.Payments(), store.Attempts(), logRepo)
	reaper := service.NewReaper(paymentService, store.Payments(), cfg.Payment.PendingTTL, cfg.Payment.ReaperInterval)
	outbox := service.NewOutboxProcessor(store, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries,
		service.NewWebhookEventHandler(cfg.Webhook.URL))
	webhooks := service.NewWebhookDispatcher(store.Webhooks(), nrApp, cfg.Webhook.Secret,
		cfg.Webhook.Timeout, cfg.Webhook.PollInterval, cfg.Webhook.MaxRetries)
	if cfg.Webhook.URL == "" {
		log.Println("Webhook URL not set: outbox events are processed without deliveries")
	}

	cards, err := fixtures.TestCards()
	if err != nil {
		return nil, err
	}
	if err := testCardService.Seed(ctx, cards); err != nil {
		return nil, err
	}

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:     handler.NewOrderHandler(paymentService),
		PaymentHandler:   handler.NewPaymentHandler(paymentService),
		TestCardHandler:  handler.NewTestCardHandler(testCardService),
		APILogHandler:    handler.NewAPILogHandler(apiLogService),
		MetricsHandler:   handler.NewMetricsHandler(metricsService),
		LogRecorder:      apiLogService,
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
	})

	// Create HTTP server.
	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		apiLogs:  apiLogService,
		reaper:   reaper,
		outbox:   outbox,
		webhooks: webhooks,
	}, nil
}
