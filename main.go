package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SAP-F-2025/clinic-service/internal/config"
	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/handlers"
	"github.com/SAP-F-2025/clinic-service/internal/metrics"
	"github.com/SAP-F-2025/clinic-service/internal/observability"
	"github.com/SAP-F-2025/clinic-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/clinic-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
	"github.com/SAP-F-2025/clinic-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, cfg.Release)
	if err != nil {
		log.Printf("Warning: Failed to initialize Sentry: %v", err)
	}
	defer flushSentry()

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis carries the live room feed and the identity cache, so it is required
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	identity := casdoor.NewIdentityCasdoor(casdoor.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Cert,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	}, redisClient, cfg.Session.TokenTTL, slogLogger)

	// Domain events go to kafka when brokers are configured, otherwise to the in-process audit log
	publisher, err := events.NewWatermillPublisher(events.PublisherConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	if len(cfg.Kafka.Brokers) == 0 {
		msgs, err := publisher.Subscribe(auditCtx)
		if err != nil {
			log.Fatalf("Failed to subscribe audit log: %v", err)
		}
		go events.RunAuditLog(msgs, slogLogger)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Initialize validator
	validator := validator.New()

	// Initialize services
	smConfig := services.DefaultServiceManagerConfig()
	smConfig.IdleTimeout = cfg.Session.IdleTimeout
	smConfig.StationPoolSize = cfg.Session.StationPoolSize
	smConfig.CodeLength = cfg.Session.CodeLength

	serviceManager := services.NewServiceManager(services.ServiceDeps{
		Repo:      repoManager.GetRepository(),
		Identity:  identity,
		Redis:     redisClient,
		Publisher: publisher,
		Metrics:   collector,
		Logger:    slogLogger,
		Validator: validator,
	}, smConfig)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	loginLimiter := handlers.NewLoginRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst)
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger, loginLimiter, metrics.Handler(registry))

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, collector, cfg.CorsAllowedOrigin)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := drainServer(ctx, server, serviceManager); err != nil {
		log.Printf("Shutdown incomplete: %v", err)
	}

	stopAudit()
	if err := publisher.Close(); err != nil {
		log.Printf("Failed to close event publisher: %v", err)
	}

	if err := repoManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	redisClient.Close()

	logger.Info("Server exited")
}

type sessionShutdowner interface {
	Shutdown(ctx context.Context) error
}

// drainServer stops the listener and ends every live session at the same time,
// so open room streams return instead of holding the shutdown until ctx expires.
func drainServer(ctx context.Context, server *http.Server, sessions sessionShutdowner) error {
	sessionsDone := make(chan error, 1)
	server.RegisterOnShutdown(func() {
		sessionsDone <- sessions.Shutdown(ctx)
	})

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	select {
	case err := <-sessionsDone:
		if err != nil {
			return fmt.Errorf("failed to shutdown services: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
