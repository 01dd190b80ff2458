package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/cardapiofacil/internal"
	"github.com/DukeRupert/cardapiofacil/internal/analytics"
	"github.com/DukeRupert/cardapiofacil/internal/content"
	"github.com/DukeRupert/cardapiofacil/internal/csrf"
	"github.com/DukeRupert/cardapiofacil/internal/experiment"
	"github.com/DukeRupert/cardapiofacil/internal/handler"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
	"github.com/DukeRupert/cardapiofacil/internal/middleware"
	"github.com/DukeRupert/cardapiofacil/internal/profile"
	"github.com/DukeRupert/cardapiofacil/internal/service"
	"github.com/DukeRupert/cardapiofacil/internal/session"
	"github.com/DukeRupert/cardapiofacil/internal/storage"
	"github.com/DukeRupert/cardapiofacil/internal/web"
	"github.com/DukeRupert/cardapiofacil/internal/whatsapp"
	"github.com/DukeRupert/cardapiofacil/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	isSecure := !cfg.IsDevelopment()

	// Storage backs the image cache and the analytics archive
	store, err := storage.New(cfg.StorageProvider,
		storage.LocalConfig{BasePath: cfg.LocalStoragePath, BaseURL: cfg.LocalStorageURL},
		storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// ==========================================================================
	// Analytics
	// ==========================================================================

	sinks := []analytics.Sink{analytics.NewLogSink(logger), analytics.NewMetricsSink()}

	if cfg.DatabaseUrl != "" {
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		sinks = append(sinks, analytics.NewPostgresSink(db))
		logger.Info("Database ready")
	}

	var archive *analytics.ArchiveSink
	if cfg.AnalyticsArchiveEnabled {
		archive, err = analytics.NewArchiveSink(store, analytics.ArchiveConfig{
			BatchSize:     cfg.AnalyticsBatchSize,
			FlushInterval: cfg.AnalyticsFlushInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("archive initialization failed: %w", err)
		}
		sinks = append(sinks, archive)
	}

	var jobs *worker.Worker
	var queue analytics.Queue
	if cfg.AnalyticsWorkers > 0 {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.AnalyticsWorkers
		workerCfg.QueueSize = cfg.AnalyticsQueueSize
		jobs, err = worker.New(workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		queue = jobs
	}

	trackerCfg := analytics.DefaultConfig()
	trackerCfg.HashKey = []byte(cfg.AnalyticsHashKey)
	tracker, err := analytics.NewTracker(trackerCfg, sinks, queue, logger)
	if err != nil {
		return fmt.Errorf("analytics initialization failed: %w", err)
	}
	if jobs != nil {
		jobs.Register(tracker.Handler())
		jobs.Start(ctx)
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	profiles := profile.NewClient(profile.Config{
		BaseURL: cfg.UserServiceURL,
		Timeout: cfg.UserServiceTimeout,
	}, logger)
	notifier := whatsapp.NewClient(whatsapp.Config{
		BaseURL: cfg.WhatsAppServiceURL,
		APIKey:  cfg.WhatsAppAPIKey,
		Timeout: cfg.WhatsAppServiceTimeout,
	}, logger)

	signups := service.NewSignupService(profiles, notifier, tracker, logger)
	images := service.NewImageService(store, logger)

	pageContent, err := content.Default()
	if err != nil {
		return fmt.Errorf("content initialization failed: %w", err)
	}

	assigner, err := experiment.NewAssigner(experiment.DefaultArms(), isSecure)
	if err != nil {
		return fmt.Errorf("experiment initialization failed: %w", err)
	}

	confirmations := session.NewStore(cfg.ConfirmationTTL, isSecure)

	// Templates are read from disk in development so edits show on reload
	var templates fs.FS = web.Templates()
	if cfg.IsDevelopment() {
		templates = os.DirFS("internal/web/templates")
	}
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:     templates,
		Logger: logger,
		IsDev:  cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	signupLimiter := middleware.NewRateLimiter(cfg.SignupRateLimit, cfg.SignupRateWindow, logger)
	signupLimit := middleware.NewRateLimitMiddleware(signupLimiter, "signup.submit", logger)

	var imageOrigins []string
	if cfg.R2PublicURL != "" {
		imageOrigins = append(imageOrigins, cfg.R2PublicURL)
	}
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, imageOrigins...)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	landing := handler.NewLandingHandler(renderer, pageContent, signups, tracker, assigner,
		confirmations, cfg.WhatsAppBusinessNumber, isSecure, logger)
	landing.RegisterRoutes(mux, signupLimit.Limit)

	api := handler.NewAPIHandler(signups, tracker, assigner, logger)
	api.RegisterRoutes(mux, signupLimit.Limit)

	handler.NewImageHandler(images, logger).RegisterRoutes(mux)
	handler.NewPageHandler(renderer, pageContent, logger).RegisterRoutes(mux)

	root := middleware.Stack(
		loggingMw.Handler,
		securityMw.Handler,
		metrics.Middleware,
		csrf.Protect(logger),
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		// Submits wait on both backend services
		WriteTimeout: cfg.UserServiceTimeout + cfg.WhatsAppServiceTimeout + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}

		signupLimiter.Stop()
		confirmations.Stop()
		shutdownAnalytics(shutdownCtx, jobs, archive, tracker, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// shutdownAnalytics drains queued deliveries before the archive writes its
// last batch.
func shutdownAnalytics(ctx context.Context, jobs *worker.Worker, archive *analytics.ArchiveSink, tracker *analytics.Tracker, logger *slog.Logger) {
	if jobs != nil {
		jobs.Stop()
	}
	if archive != nil {
		archive.Stop(ctx)
		logger.Info("Analytics archive flushed", "remaining", archive.Buffered())
	}
	tracker.Stop()
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
