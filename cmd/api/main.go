// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Whip Helmets storefront API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire collaborators (hasher, sessions, limiters, broker, payment gateway).
//  7. Wire HTTP handlers.
//  8. Start HTTP server and background jobs with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/whiphelmets/internal/api"
	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/broker"
	"github.com/taibuivan/whiphelmets/internal/platform/config"
	"github.com/taibuivan/whiphelmets/internal/platform/constants"
	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	"github.com/taibuivan/whiphelmets/internal/platform/migration"
	pgstore "github.com/taibuivan/whiphelmets/internal/platform/postgres"
	redisstore "github.com/taibuivan/whiphelmets/internal/platform/redis"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/internal/shop/media"
	"github.com/taibuivan/whiphelmets/internal/shop/order"
	"github.com/taibuivan/whiphelmets/internal/shop/payment"
	"github.com/taibuivan/whiphelmets/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("rate_limit_backend", cfg.RateLimitBackend),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background jobs (session sweeper, limiter pruning) stop with this context.
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Collaborators ──────────────────────────────────────────────────
	hasher := sec.NewPasswordHasher(sec.DefaultArgon2Params)
	signer := sec.NewOrderLinkSigner(cfg.SessionSecret, constants.AuthIssuer, constants.OrderLinkTTL)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		brokerPublisher := broker.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, log)
		defer func() {
			if cerr := brokerPublisher.Close(); cerr != nil {
				log.Warn("broker_close_failed", slog.Any("error", cerr))
			}
		}()
		publisher = brokerPublisher
	} else {
		log.Warn("broker_disabled", slog.String("reason", "AMQP_URL is empty"))
	}

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.MercadoPagoAccessToken != "" {
		mercadoPago, err := payment.NewMercadoPago(payment.MercadoPagoConfig{
			AccessToken: cfg.MercadoPagoAccessToken,
			BaseURL:     cfg.MercadoPagoBaseURL,
			Timeout:     cfg.IntegrationTimeout,
		}, log)
		must(log, err, "configure payment gateway")
		gateway = mercadoPago
	} else {
		log.Warn("payment_gateway_disabled", slog.String("reason", "MP_ACCESS_TOKEN is empty"))
	}

	globalLimiter, loginLimiter := newLimiters(jobsCtx, cfg, rdb)

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	must(log, err, "parse trusted proxies")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	sessions := auth.NewSessionManager(auth.NewSessionRepository(pool), cfg.SessionTTL, log)
	go sessions.RunSweeper(jobsCtx, cfg.SessionSweepInterval)

	authService := auth.NewService(
		auth.NewUserRepository(pool),
		sessions,
		hasher,
		auth.NewResetTokenRepository(rdb),
		auth.NewVerificationTokenRepository(rdb),
		publisher,
		auth.Settings{RequireVerifiedEmail: cfg.RequireVerifiedEmail},
		log,
	)
	authHandler := auth.NewHandler(authService, sessions, middleware.RateLimit(loginLimiter, "login"))

	imageStore, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL, log)
	must(log, err, "prepare media directory")
	catalogService := catalog.NewService(catalog.NewRepository(pool), log).WithImageStore(imageStore)
	catalogHandler := catalog.NewHandler(catalogService)

	orderService := order.NewService(
		order.NewStore(pool),
		signer,
		gateway,
		publisher,
		order.Settings{PublicBaseURL: cfg.PublicBaseURL},
		log,
	)
	orderHandler := order.NewHandler(orderService)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(cfg, log, api.Dependencies{
		Sessions:       sessions,
		Limiter:        globalLimiter,
		TrustedProxies: trustedProxies,
	}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Catalog:   catalogHandler,
		Orders:    orderHandler,
		Media:     http.FileServer(http.Dir(imageStore.Root())),
	})

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	stopJobs()

	// Give in-flight requests enough time to complete.
	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// newLimiters builds the global and the login limiters for the configured
// backend. Memory limiters are pruned until ctx is done.
func newLimiters(ctx context.Context, cfg *config.Config, rdb *redis.Client) (global, login middleware.Limiter) {
	loginRPS := float64(cfg.LoginRateLimitPerMin) / 60
	loginBurst := max(cfg.LoginRateLimitPerMin/2, 1)

	if cfg.RateLimitBackend == "redis" {
		return middleware.NewRedisLimiter(rdb, cfg.RateLimitRPS, cfg.RateLimitBurst),
			middleware.NewRedisLimiter(rdb, loginRPS, loginBurst)
	}

	globalMemory := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	loginMemory := middleware.NewMemoryLimiter(loginRPS, loginBurst)
	go globalMemory.Run(ctx)
	go loginMemory.Run(ctx)
	return globalMemory, loginMemory
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
