// Package main provides the API server entry point for the contact verifier service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contact-verifier/internal/api"
	"github.com/contact-verifier/internal/config"
	"github.com/contact-verifier/internal/job"
	"github.com/contact-verifier/internal/logging"
	"github.com/contact-verifier/internal/ratelimit"
	"github.com/contact-verifier/internal/resolver"
	"github.com/contact-verifier/internal/retry"
	"github.com/contact-verifier/internal/service"
	"github.com/contact-verifier/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections. Databases may still be coming up
	// when the service starts, so connects retry with backoff.
	logger.Info("Connecting to databases...")

	var postgres *storage.PostgresDB
	err = retry.WithRetry(context.Background(), func(ctx context.Context, attempt int) error {
		var connErr error
		postgres, connErr = storage.NewPostgresDB(&cfg.Database.Postgres)
		return connErr
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var clickhouse *storage.ClickHouseDB
	err = retry.WithRetry(context.Background(), func(ctx context.Context, attempt int) error {
		var connErr error
		clickhouse, connErr = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		return connErr
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	var redis *storage.RedisStore
	err = retry.WithRetry(context.Background(), func(ctx context.Context, attempt int) error {
		var connErr error
		redis, connErr = storage.NewRedisStore(&cfg.Database.Redis)
		return connErr
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	phoneRecordRepo := storage.NewPhoneRecordRepository(postgres)
	credentialRepo := storage.NewCredentialRepository(postgres)
	quotaRepo := storage.NewQuotaRepository(redis.Client())
	checkEventRepo := storage.NewCheckEventRepository(clickhouse)

	if err := checkEventRepo.EnsureSchema(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to ensure check event schema")
	}

	// Initialize the resolver client for the messaging-network gateway
	gatewayClient := resolver.NewGatewayClient(&resolver.GatewayClientConfig{
		BaseURL:           cfg.Resolver.GatewayURL,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
		RequestTimeout:    cfg.Resolver.RequestTimeout,
	})

	// Initialize the verification engine
	logger.Info("Initializing services...")

	limiter := ratelimit.NewLimiter(quotaRepo)
	registry := job.NewRegistry()

	controller, err := job.NewController(&job.ControllerConfig{
		Registry:            registry,
		Records:             phoneRecordRepo,
		Quota:               limiter,
		Credentials:         credentialRepo,
		Client:              gatewayClient,
		Audit:               checkEventRepo,
		DefaultBatchSize:    cfg.Verification.DefaultBatchSize,
		DefaultDelaySeconds: cfg.Verification.DefaultDelaySeconds,
		PollInterval:        cfg.Verification.PollInterval,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create verification controller")
	}

	interactive := service.NewInteractiveChecker(registry, limiter, credentialRepo, gatewayClient, checkEventRepo)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.API.RequestsPerSecond,
		Burst:           cfg.API.Burst,
	}

	server := api.NewServer(serverConfig, controller, interactive, phoneRecordRepo)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Running jobs are volatile state; stop them before the server exits
	controller.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
