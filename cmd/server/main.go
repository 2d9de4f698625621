// Package main is the entry point for the posledger HTTP API.
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

	redis "github.com/redis/go-redis/v9"

	"posledger/internal/app"
	"posledger/internal/config"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/auth"
	"posledger/internal/infrastructure/cache"
	v1 "posledger/internal/infrastructure/http/v1"
	"posledger/internal/infrastructure/http/v1/handlers"
	"posledger/internal/infrastructure/storage/memory"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

// auditSink is what the server needs from an audit backend.
type auditSink interface {
	audit.Sink
	audit.Reader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := context.Background()
	checks := map[string]handlers.Checker{}

	var (
		repos app.Repositories
		sink  auditSink
		seed  func(svc *app.Services) error
	)
	if cfg.UsesMemoryStore() {
		store := memory.NewStore()
		repos = app.MemoryRepositories(store)
		sink = memory.NewAuditSink(store)
		catalog := memory.NewCatalogRepo(store)
		seed = func(svc *app.Services) error {
			_, err := app.Seed(ctx, catalog, svc, time.Now())
			return err
		}
		log.Warn("DATABASE_URL not set, using in-memory store")
	} else {
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, int32(cfg.DBMaxConns)))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("connected to database")

		txOpts := postgres.DefaultTxOptions()
		txOpts.StatementTimeout = cfg.TxStatementTimeout
		txm := postgres.NewTxManager(pool, txOpts)

		pgSink, err := postgres.NewAuditSink(txm)
		if err != nil {
			log.Fatalw("failed to create audit sink", "error", err)
		}
		repos = app.PostgresRepositories(txm)
		sink = pgSink
		checks["database"] = handlers.CheckerFunc(pool.Ping)
	}

	opts := app.Options{}
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = client.Close() }()

		opts.PromoCache = cache.NewPromoCache(client, cfg.PromoCacheTTL)
		opts.Locker = cache.NewIdempotencyLocker(client, cfg.IdempotencyLockTTL)
		checks["redis"] = redisCheck(client)
		log.Infow("redis enabled", "addr", cfg.RedisAddr)
	}

	recorder := audit.NewRecorder(sink, cfg.AuditBuffer)
	opts.Audit = recorder

	services := app.NewServices(repos, opts)

	if seed != nil && cfg.SeedDemoData {
		if err := seed(services); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
		log.Info("demo data seeded")
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Issuer = cfg.JWTIssuer
	jwtCfg.AccessTokenTTL = cfg.JWTTTL

	router := v1.NewRouter(v1.RouterConfig{
		Services:     services,
		Logger:       log,
		JWTValidator: auth.NewJWTService(jwtCfg),
		History:      sink,
		HealthChecks: checks,
		CORSOrigins:  cfg.CORSOrigins,
		Debug:        cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("starting server", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Errorw("audit recorder did not drain", "error", err)
	}

	log.Info("server stopped")
}

func redisCheck(client *redis.Client) handlers.Checker {
	return handlers.CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
