package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splatchain-ledger/config"
	httpHandler "splatchain-ledger/internal/adapter/http/handler"
	"splatchain-ledger/internal/adapter/metrics"
	"splatchain-ledger/internal/adapter/storage/csvstore"
	pgStorage "splatchain-ledger/internal/adapter/storage/postgres"
	redisStorage "splatchain-ledger/internal/adapter/storage/redis"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/internal/service"
	"splatchain-ledger/pkg/logger"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file (default: ./config.yaml)")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logFile *logger.FileOutput
	if cfg.Log.File != "" {
		logFile = &logger.FileOutput{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, logFile)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("ledger", cfg.Ledger.Path).
		Msg("Starting SplatChain ledger")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	healthCheckers := []ports.HealthChecker{redisStorage.NewHealthCheck(rdb, redisStorage.DefaultMaxBacklog)}

	// Optional PostgreSQL audit trail
	var auditRepo ports.AuditRepository
	if cfg.Database.Enabled {
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare audit schema")
		}
		auditRepo = pgStorage.NewAuditRepository(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL connected")
	}

	prom := metrics.NewPrometheus()
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	httpClient := service.NewNotificationHTTPClient(cfg.Notify.Timeout)

	// Notifications: queued in Redis, delivered by a single dispatcher
	queue := redisStorage.NewNotificationQueue(rdb)
	notifySvc := service.NewNotificationService(queue, prom, log)
	var notifier ports.Notifier = service.NewLogNotifier(log)
	if cfg.Notify.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Secret, sigSvc, httpClient, log)
	}
	dispatcher := service.NewNotificationDispatcher(queue, notifier, prom, cfg.Notify.PollTimeout, log)

	var auditSvc ports.AuditService
	if auditRepo != nil {
		auditSvc = service.NewAuditService(auditRepo, log)
	}

	// Ledger
	store := csvstore.NewFileStore(cfg.Ledger.Path)
	ledger := service.NewLedgerService(store, notifySvc, auditSvc, prom, service.LedgerOptions{
		WriteRetries:    cfg.Ledger.WriteRetries,
		WriteRetryDelay: cfg.Ledger.WriteRetryDelay,
	}, log)
	res, err := ledger.Reload(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("path", store.Location()).Msg("Failed to load ledger")
	}
	log.Info().Int("wallets", res.Wallets).Int("dropped", res.Dropped).Int("repaired", res.Repaired).Msg("Ledger loaded")
	healthCheckers = append(healthCheckers, ledger)

	// Block list
	blocks := service.NewBlockListService(service.BlockListOptions{
		Enabled:      cfg.BlockList.Enabled,
		BlockServers: cfg.BlockList.BlockServers,
		URL:          cfg.BlockList.URL,
	}, httpClient, log)
	if err := blocks.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial block list refresh failed")
	}

	// SIGHUP triggers a reconciliation with the wallet file
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	reloads := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				select {
				case reloads <- struct{}{}:
				default:
				}
			}
		}
	}()

	syncer := service.NewSyncController(ledger, cfg.Ledger.ReloadInterval, log)
	go syncer.Run(ctx, reloads)
	go dispatcher.Run(ctx)
	if blocks.Enabled() {
		go blocks.Run(ctx, cfg.BlockList.RefreshInterval)
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:           ledger,
		Reloader:         syncer,
		AuditSvc:         auditSvc,
		AuditRepo:        auditRepo,
		TokenSvc:         tokenSvc,
		BlockChecker:     blocks,
		RateLimitStore:   redisStorage.NewRateLimitStore(rdb),
		IdempotencyCache: redisStorage.NewIdempotencyCache(rdb),
		Metrics:          prom,
		HealthCheckers:   healthCheckers,
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
