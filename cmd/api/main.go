package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/authwatch/internal/audit"
	"github.com/BradenHooton/authwatch/internal/auth"
	"github.com/BradenHooton/authwatch/internal/config"
	"github.com/BradenHooton/authwatch/internal/database"
	"github.com/BradenHooton/authwatch/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authwatch/internal/middleware"
	"github.com/BradenHooton/authwatch/internal/repositories"
	"github.com/BradenHooton/authwatch/internal/routes"
	"github.com/BradenHooton/authwatch/internal/services"
	pkghttp "github.com/BradenHooton/authwatch/pkg/http"
	pkglogger "github.com/BradenHooton/authwatch/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = pkglogger.New(cfg.Server.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// run wires the service and blocks until a shutdown signal or a server error.
// Every resource it opens is released before it returns.
func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	notifier, err := newAlertNotifier(cfg.Alert, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize alert notifier: %w", err)
	}

	// The flat file stays on the request path so lines keep call order
	fileSink := audit.NewFileSink(cfg.Audit.LogPath)
	sinks := []audit.Sink{fileSink}
	logger.Info("audit log configured", slog.String("path", fileSink.Path()))

	// Optional durable copy of the audit trail, written off the request path
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		sinks = append(sinks, audit.NewAsyncSink(
			repositories.NewFailureLogRepository(db),
			logger,
			cfg.Audit.MirrorQueueSize,
			cfg.Audit.MirrorWriteTimeout,
		))
	}

	dispatcher := services.NewAlertDispatcher(notifier, logger, cfg.Tracker.AlertQueueSize, cfg.Tracker.AlertSendTimeout)

	tracker := services.NewFailureTracker(
		audit.NewMultiSink(sinks...),
		dispatcher,
		services.FailureTrackerConfig{
			AlertThreshold:  cfg.Tracker.AlertThreshold,
			RetentionWindow: cfg.Tracker.RetentionWindow,
			SweepInterval:   cfg.Tracker.SweepInterval,
		},
		logger,
	)
	// Runs before db.Close so the mirror queue drains into an open pool
	defer tracker.Close()

	// Reporter authentication
	var tokenManager *auth.TokenManager
	if cfg.Reporter.JWTSecret != "" {
		tokenManager = auth.NewTokenManager(cfg.Reporter.JWTSecret, cfg.Reporter.TokenLifetime)
	}
	apiKeys := auth.NewAPIKeyVerifier(cfg.Reporter.APIKeyHashes)
	if !cfg.Reporter.ReporterAuthEnabled() {
		logger.Warn("reporter authentication disabled: failure reports are accepted from any caller")
	}

	var healthHandler *handlers.HealthHandler
	if db != nil {
		healthHandler = handlers.NewHealthHandler(db, logger)
	} else {
		healthHandler = handlers.NewHealthHandler(nil, logger)
	}
	failureHandler := handlers.NewFailureHandler(tracker, ipConfig, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, failureHandler, healthHandler, tokenManager, apiKeys, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.RateLimitPerMinute,
		IPConfig:          ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func newAlertNotifier(cfg config.AlertConfig, logger *slog.Logger) (services.AlertNotifier, error) {
	switch cfg.Transport {
	case config.AlertTransportLog:
		return services.NewLogAlertNotifier(logger), nil
	case config.AlertTransportSES:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewSESAlertNotifier(ctx, cfg.AWSRegion, cfg.FromAddress, cfg.ToAddresses, logger)
	case config.AlertTransportSMTP:
		return services.NewSMTPAlertNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword,
			cfg.FromAddress, cfg.ToAddresses, logger), nil
	default:
		return nil, fmt.Errorf("unknown alert transport %q", cfg.Transport)
	}
}
