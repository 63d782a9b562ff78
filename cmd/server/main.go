package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vantran/selene/internal"
	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/handler/api"
	"github.com/vantran/selene/internal/handler/webhook"
	"github.com/vantran/selene/internal/jobs"
	"github.com/vantran/selene/internal/middleware"
	"github.com/vantran/selene/internal/notify"
	"github.com/vantran/selene/internal/payment"
	"github.com/vantran/selene/internal/postgres"
	"github.com/vantran/selene/internal/router"
	"github.com/vantran/selene/internal/routes"
	"github.com/vantran/selene/internal/service"
	"github.com/vantran/selene/internal/telemetry"
)

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

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	orderStore := postgres.NewOrderStore(pool)
	productStore := postgres.NewProductStore(pool)
	userStore := postgres.NewUserStore(pool)
	notificationStore := postgres.NewNotificationStore(pool)

	// Initialize notifier (optional, disabled when NATS_URL is unset)
	var notifier domain.Notifier = notify.NopNotifier{}
	if cfg.NATSUrl != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATSUrl)
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATSUrl, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	// Initialize MoMo payment provider
	logger.Info("Initializing MoMo payment provider...")
	momoProvider, err := payment.NewMoMoProvider(payment.MoMoConfig{
		PartnerCode: cfg.MoMo.PartnerCode,
		AccessKey:   cfg.MoMo.AccessKey,
		SecretKey:   cfg.MoMo.SecretKey,
		Endpoint:    cfg.MoMo.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MoMo provider: %w", err)
	}

	// Initialize Stripe payment provider (optional card path)
	var stripeProvider *payment.StripeProvider
	if cfg.Stripe.SecretKey != "" {
		logger.Info("Initializing Stripe payment provider...")
		stripeProvider, err = payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
	}

	// Initialize order service
	orderService := service.NewOrderService(
		orderStore, productStore, userStore, notificationStore, notifier, logger)

	// Initialize business metrics
	telemetry.Init("selene")

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	webhookDeps := routes.WebhookDeps{
		MoMoHandler: webhook.NewMoMoHandler(momoProvider, orderService),
	}
	if stripeProvider != nil {
		webhookDeps.StripeHandler = webhook.NewStripeHandler(stripeProvider, orderService)
	}

	apiDeps := routes.APIDeps{
		OrderHandler: api.NewOrderHandler(orderService),
		RequireAuth:  middleware.RequireAuth,
		RequireAdmin: middleware.RequireAdmin,
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	metrics := middleware.NewMetrics("selene")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithIdentity(cfg.JWTSecret, userStore),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterAPIRoutes(r, apiDeps)

	// ==========================================================================
	// Background maintenance
	// ==========================================================================

	if cfg.Cleanup.Enabled {
		runner := jobs.NewRunner(
			orderService,
			orderStore,
			time.Duration(cfg.Cleanup.RetentionDays)*24*time.Hour,
			time.Duration(cfg.Cleanup.IntervalHours)*time.Hour,
			logger,
		)
		go runner.Start(ctx)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
