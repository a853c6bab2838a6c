package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concretoya/api/internal/config"
	"github.com/concretoya/api/internal/database"
	apihandlers "github.com/concretoya/api/internal/handlers/api"
	"github.com/concretoya/api/internal/middleware"
	"github.com/concretoya/api/internal/monitoring"
	"github.com/concretoya/api/internal/pricing"
	"github.com/concretoya/api/internal/services/cart"
	"github.com/concretoya/api/internal/services/lead"
	"github.com/concretoya/api/internal/services/order"
	"github.com/concretoya/api/internal/statestore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadDev()

	// Connect to database
	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("database connected")

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")

	// Monitoring reporter for resolver failure paths
	var reporter pricing.Reporter = monitoring.NopReporter{}
	if cfg.MonitoringURL != "" {
		reporter = monitoring.NewWebhookReporter(cfg.MonitoringURL, logger)
	}

	// Pricing resolver over the live rules table, fallback on any failure
	rulesSource := pricing.NewPGSource(pool)
	resolver := pricing.NewResolver(rulesSource, reporter, logger, cfg.Quote.ResolveTimeout)

	// Shared rules store for the catalog endpoint, refreshed in the
	// background. Quote calculations resolve per request instead, so a
	// captured breakdown always reflects a single rule-set version.
	rulesStore := statestore.New(resolver.Resolve(context.Background()))
	rulesStore.Subscribe(func(rules pricing.PricingRules) {
		slog.Info("pricing catalog refreshed", "version", rules.Version)
	})

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Quote.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				rulesStore.Set(resolver.Resolve(refreshCtx))
			}
		}
	}()

	// Services
	cartSvc := cart.NewService(pool, logger)
	orderSvc := order.NewService(pool, logger)
	leadSvc := lead.NewService(pool, logger)

	// Handlers
	quoteHandler := apihandlers.NewQuoteHandler(resolver, cfg.Quote.MaxVolumeM3, logger)
	catalogHandler := apihandlers.NewCatalogHandler(rulesStore, logger)
	cartHandler := apihandlers.NewCartHandler(cartSvc, resolver, cfg.Quote.MaxVolumeM3, logger)
	orderHandler := apihandlers.NewOrderHandler(orderSvc, cartSvc, logger)
	leadHandler := apihandlers.NewLeadHandler(leadSvc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	quoteHandler.RegisterRoutes(mux)
	catalogHandler.RegisterRoutes(mux)
	cartHandler.RegisterRoutes(mux)
	orderHandler.RegisterRoutes(mux)
	leadHandler.RegisterRoutes(mux)

	// Middleware stack (CORS for the storefront, rate limiting, logging, recovery)
	var chain http.Handler = mux
	chain = middleware.CORS(cfg.BaseURL)(chain)
	chain = middleware.RateLimiter(20, 40)(chain) // 20 req/s, burst 40 per IP
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.Recover(logger)(chain)
	chain = middleware.RequestLogger(logger)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	stopRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
