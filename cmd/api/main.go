package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/marketplace-orders/internal/analytics"
	"github.com/safar/marketplace-orders/internal/cache"
	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/httpapi"
	"github.com/safar/marketplace-orders/internal/ledger"
	"github.com/safar/marketplace-orders/internal/notify"
	"github.com/safar/marketplace-orders/internal/outbox"
	"github.com/safar/marketplace-orders/internal/payment"
	"github.com/safar/marketplace-orders/internal/settings"
	"github.com/safar/marketplace-orders/internal/telemetry"
	"github.com/safar/marketplace-orders/internal/vendororders"
)

const serviceName = "marketplace-orders"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.App.Env != config.EnvProduction, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.App.Env)
	if err != nil {
		logger.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	storeSettings, err := settings.NewProvider(ctx, db)
	if err != nil {
		logger.Error("failed to load store settings", "error", err)
		os.Exit(1)
	}

	orders := ledger.New(db, storeSettings,
		ledger.WithInventoryAdjustment(cfg.App.AdjustInventory()),
		ledger.WithLogger(logger),
	)
	payments := payment.NewConfirmer(orders, payment.NewHTTPGateway(cfg.Gateway), logger)

	var reportCache cache.Cache
	if cfg.Redis.Enabled() {
		reportCache = cache.NewRedisCache(cfg.Redis.Addr, serviceName)
	}
	reports := analytics.NewAggregator(db, reportCache, cfg.Analytics.CacheTTL, logger)

	publisher, err := notify.New(cfg.Notify)
	switch {
	case errors.Is(err, notify.ErrDisabled):
		logger.Info("order notifications disabled, events stay in the outbox")
	case err != nil:
		logger.Error("failed to connect notification broker", "driver", cfg.Notify.Driver, "error", err)
		os.Exit(1)
	default:
		defer publisher.Close()
		relay := outbox.NewRelay(db, publisher, cfg.Notify.BatchSize, logger)
		go relay.Run(ctx, cfg.Notify.FlushInterval)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Orders:            orders,
		Payments:          payments,
		Vendors:           vendororders.NewPartitioner(db),
		Analytics:         reports,
		Settings:          storeSettings,
		PaymentStepURL:    cfg.App.PaymentStepURL,
		PaymentSuccessURL: cfg.App.PaymentSuccessURL,
	})
	router := httpapi.NewRouter(handler, httpapi.NewAuthenticator(cfg.Auth.JWTSecret), health(db))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
