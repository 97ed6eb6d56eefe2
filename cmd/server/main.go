// Package main is the entrypoint for the pushconsole API server.
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

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/pushconsole/internal/api"
	"github.com/kiranshivaraju/pushconsole/internal/api/handler"
	mw "github.com/kiranshivaraju/pushconsole/internal/api/middleware"
	"github.com/kiranshivaraju/pushconsole/internal/api/response"
	"github.com/kiranshivaraju/pushconsole/internal/cache"
	"github.com/kiranshivaraju/pushconsole/internal/config"
	"github.com/kiranshivaraju/pushconsole/internal/gateway"
	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
	"github.com/kiranshivaraju/pushconsole/internal/store"
	"github.com/kiranshivaraju/pushconsole/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"tenants", len(cfg.Tenants),
		"provider_configured", cfg.OneSignal.APIKey != "",
	)
	if cfg.OneSignal.APIKey == "" {
		slog.Warn("ONESIGNAL_API_KEY not set, provider calls will fail with NOT_CONFIGURED")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	if cfg.Telemetry.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, nil, slog.Default())
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdownTracer(context.Background())
	}

	// 3. Optional database: API key auth and dispatch audit log
	var pgStore store.Store
	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore = store.NewPostgresStore(pool)
	} else {
		slog.Warn("DATABASE_URL not set, authentication and dispatch history disabled")
	}

	// 4. Optional Redis: rate limiting
	var redisCache cache.Cache
	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		redisCache = rc
	}

	// 5. Gateway in front of the provider
	client := onesignal.NewHTTPClient(cfg.OneSignal.BaseURL, cfg.OneSignal.APIKey, cfg.OneSignal.Timeout,
		onesignal.WithTransport(otelhttp.NewTransport(http.DefaultTransport)))
	gw := gateway.New(cfg.OneSignal.APIKey, client, slog.Default())

	// 6. Build router with dependencies
	router := api.NewRouter(buildDependencies(cfg, gw, pgStore, redisCache))

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OneSignal.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// buildDependencies wires handlers for whatever infrastructure is present.
// s and c may be nil.
func buildDependencies(cfg *config.Config, gw *gateway.Gateway, s store.Store, c cache.Cache) api.Dependencies {
	deps := api.Dependencies{
		Logger:         slog.Default(),
		HealthHandler:  healthHandler(gw, s, c),
		TenantsHandler: handler.NewTenantsHandler(cfg.Tenants),
		MetricsHandler: promhttp.Handler(),
	}

	if s != nil {
		keys := handler.NewKeyHandlers(s)
		deps.Auth = mw.NewAuth(s)
		deps.NotificationsHandler = handler.NewNotificationsHandler(gw, s, slog.Default())
		deps.DispatchesHandler = handler.NewDispatchesHandler(s)
		deps.CreateKeyHandler = keys.Create
		deps.ListKeysHandler = keys.List
		deps.RevokeKeyHandler = keys.Revoke
	} else {
		deps.NotificationsHandler = handler.NewNotificationsHandler(gw, nil, slog.Default())
	}

	if c != nil {
		deps.RateLimit = mw.NewRateLimit(c, cfg.Server.RateLimitPerMinute)
	}
	return deps
}

// healthHandler reports provider configuration and checks database and
// cache connectivity when they are in use.
func healthHandler(gw *gateway.Gateway, s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"provider": "ok",
			"database": "disabled",
			"cache":    "disabled",
		}
		if !gw.Configured() {
			checks["provider"] = "not_configured"
		}

		degraded := false
		if s != nil {
			checks["database"] = "ok"
			if err := s.Ping(r.Context()); err != nil {
				checks["database"] = "degraded"
				degraded = true
			}
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
