// Package app is the composition root: it reads config, wires the
// GeoIndex/ReferenceStore/AuthGate/coordination services into the
// RequestPipeline, and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BenjaminPelletier/dss/internal/api"
	"github.com/BenjaminPelletier/dss/internal/auth"
	"github.com/BenjaminPelletier/dss/internal/config"
	"github.com/BenjaminPelletier/dss/internal/coordination"
	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/httpserver"
	"github.com/BenjaminPelletier/dss/internal/platform"
	"github.com/BenjaminPelletier/dss/internal/store"
	"github.com/BenjaminPelletier/dss/internal/store/postgres"
	"github.com/BenjaminPelletier/dss/internal/telemetry"
)

// Run is the main application entry point.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting dss node", "listen", cfg.ListenAddr(), "store_backend", cfg.StoreBackend)

	referenceStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening reference store: %w", err)
	}
	defer closeStore()

	publicKeyPEM, err := cfg.ResolvePublicKeyPEM(os.ReadFile)
	if err != nil {
		return fmt.Errorf("resolving public key: %w", err)
	}
	gate, err := auth.NewGate(publicKeyPEM, cfg.TokenAudience)
	if err != nil {
		return fmt.Errorf("constructing auth gate: %w", err)
	}
	if publicKeyPEM == "" {
		logger.Warn("no public key configured; every authenticated request will be rejected (DSS_PUBLIC_KEY_PEM / DSS_PUBLIC_KEY_PATH)")
	}

	var rateLimiter *auth.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("closing redis", "error", err)
			}
		}()
		rateLimiter = auth.NewRateLimiter(rdb, 20, 15*time.Minute)
		logger.Info("auth-failure rate limiting enabled")
	} else {
		logger.Info("auth-failure rate limiting disabled (REDIS_URL not set)")
	}

	geoIndex := geo.Config{MinS2Level: cfg.S2MinLevel, MaxS2Level: cfg.S2MaxLevel}
	subscriptionService := &coordination.SubscriptionService{Store: referenceStore, GeoIndex: geoIndex}
	operationService := &coordination.OperationService{Store: referenceStore, GeoIndex: geoIndex}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	subHandlers := &api.SubscriptionHandlers{Service: subscriptionService}
	opHandlers := &api.OperationHandlers{Service: operationService}
	statusHandlers := api.NewStatusHandlers()

	srv := httpserver.NewServer(logger, httpserver.Deps{
		Gate:        gate,
		RateLimiter: rateLimiter,
		CORSOrigins: cfg.CORSAllowedOrigins,
		MetricsReg:  metricsReg,

		StatusHandler: statusHandlers.Get,

		SubscriptionsGet:    subHandlers.Get,
		SubscriptionsQuery:  subHandlers.Query,
		SubscriptionsPut:    subHandlers.Put,
		SubscriptionsDelete: subHandlers.Delete,

		OperationsGet:    opHandlers.Get,
		OperationsQuery:  opHandlers.Query,
		OperationsPut:    opHandlers.Put,
		OperationsDelete: opHandlers.Delete,
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dss node listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down dss node")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// openStore selects and opens the configured ReferenceStore backend. The
// returned close function is always safe to call, even for the in-memory
// backend (a no-op).
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Info("reference store backend: memory (single process, not durable)")
		return store.NewMemory(), func() {}, nil
	case "postgres":
		pgStore, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.MigrationsDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reference store backend: postgres", "migrations_applied", true)
		return pgStore, pgStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want \"memory\" or \"postgres\")", cfg.StoreBackend)
	}
}
