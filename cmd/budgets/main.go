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

	"github.com/boddenberg/budgets-bfa-go/internal/config"
	"github.com/boddenberg/budgets-bfa-go/internal/handler"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/observability"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/webhook"
	"github.com/boddenberg/budgets-bfa-go/internal/port"
	"github.com/boddenberg/budgets-bfa-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()
	resolved := cfg.Resolve()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.Driver()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("webhook_timeout", cfg.WebhookTimeout),
		zap.Bool("webhook_url_set", resolved.WebhookURL != ""),
		zap.Bool("webhook_token_set", resolved.WebhookToken != ""),
		zap.Bool("public_base_set", resolved.PublicBase != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init store", zap.Error(err))
	}
	defer closeStore()

	// --- Webhook ---
	// the notifier bounds each delivery with its own timeout
	notifier := webhook.NewNotifier(&http.Client{}, webhook.Config{
		URL:        resolved.WebhookURL,
		Token:      resolved.WebhookToken,
		PublicBase: resolved.PublicBase,
		Timeout:    cfg.WebhookTimeout,
	}, metrics, logger)
	if !notifier.Configured() {
		logger.Warn("webhook: N8N_WEBHOOK_URL not set, notifications disabled")
	}

	// --- Services ---
	budgetSvc := service.NewBudgetService(store, notifier, metrics, logger)
	diagSvc := service.NewDiagnosticsService(resolved, notifier, store, logger)

	// --- Router ---
	router := handler.NewRouter(budgetSvc, diagSvc, metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newStore builds the budget store selected by the configuration. It returns a
// nil store when none is configured; budget routes then answer 500.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.BudgetStore, func(), error) {
	cb := resilience.NewCircuitBreaker("budget-store")

	switch cfg.Driver() {
	case config.DriverSupabase:
		logger.Info("using Supabase as budget store", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			logger,
		)
		return client, func() {}, nil

	case config.DriverPostgres:
		logger.Info("using Postgres as budget store")
		connectCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
		defer cancel()
		pg, err := postgres.New(connectCtx, cfg.DatabaseURL, cb, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	logger.Warn("budget store not configured, budget routes unavailable")
	return nil, func() {}, nil
}
