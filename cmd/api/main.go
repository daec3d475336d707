package main

import (
	"context"
	"log"

	"marketpulse/config"
	"marketpulse/internal/events"
	"marketpulse/internal/handler"
	"marketpulse/internal/redis"
	"marketpulse/internal/repository"
	"marketpulse/internal/runner"
	"marketpulse/internal/server"
	"marketpulse/internal/services"
	"marketpulse/internal/storage"
	"marketpulse/internal/websocket"
	"marketpulse/pkg/database"
	"marketpulse/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	// Connect to Database
	database.Connect(cfg)

	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Redis backs the event bus, the memory-context store, and webhook
	// throttling.
	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := redis.GetClient()

	executionRepo := repository.NewExecutionRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)
	tenantRepo := repository.NewTenantRepository(database.DB)

	eventBus := events.NewRedisEventBus(redisClient)
	memoryStore := redis.NewMemoryStore(redisClient, redis.DefaultMemoryStoreConfig())
	limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
		WebhookLimit:  cfg.WebhookRateLimit,
		WebhookWindow: cfg.WebhookRateWindow(),
	})

	runnerClient := runner.NewClient(cfg.RunnerEndpoint, cfg.RunnerAPIKey, cfg.RunnerTimeout())

	// Optional terminal-callback archive.
	var archive services.ArchiveStore
	if cfg.ArchiveBucket != "" {
		archiveClient, err := storage.NewArchiveClient(context.Background(), storage.S3Config{
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Endpoint:  cfg.ArchiveEndpoint,
		})
		if err != nil {
			log.Fatalf("Failed to initialize callback archive: %v", err)
		}
		archive = archiveClient
	}

	auditService := services.NewAuditService(auditRepo, l)
	tenantService := services.NewTenantService(tenantRepo)
	memoryService := services.NewMemoryContextService(memoryStore)
	authService := services.NewAuthService(cfg)

	dispatchService := services.NewDispatchService(
		executionRepo, runnerClient, memoryService, tenantService,
		auditService, eventBus, cfg.WorkflowMap, l,
	)
	statusService := services.NewStatusService(executionRepo, auditService, eventBus, cfg.ExecutionSLAWindow(), l)
	reconcileService := services.NewReconcileService(executionRepo, auditService, archive, eventBus, l)

	// Live status stream: hub fan-out fed by the Redis bus.
	hub := websocket.NewHub()
	bridge := websocket.NewRedisBridge(eventBus, hub)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)
	go func() {
		if err := bridge.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			l.Errorf("event bridge stopped: %v", err)
		}
	}()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Automation: handler.NewAutomationHandler(dispatchService, statusService),
		Webhook:    handler.NewWebhookHandler(reconcileService),
		Audit:      handler.NewAuditHandler(auditService),
		Stream:     websocket.NewHandler(authService, hub),
	}, authService, runnerClient, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
