// Package main is the entry point for the posledger background worker.
// It relays outbox events to Redis pub/sub and purges delivered rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"posledger/internal/config"
	appctx "posledger/internal/core/context"
	"posledger/internal/infrastructure/cache"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

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
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if _, err := config.MustEnv("DATABASE_URL"); err != nil {
		log.Fatalw("worker needs a database", "error", err)
	}
	if _, err := config.MustEnv("REDIS_ADDR"); err != nil {
		log.Fatalw("worker needs a relay target", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting posledger worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, int32(cfg.DBMaxConns)))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = client.Close() }()

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
	relay := postgres.NewOutboxRelay(txm, cfg.OutboxBatchSize, cache.NewEventRelay(client, cfg.OutboxChannel))

	worker := NewOutboxWorker(relay, txm.Pool(), cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// OutboxWorker polls the outbox on a fixed interval.
type OutboxWorker struct {
	relay        *postgres.OutboxRelay
	pool         *pgxpool.Pool
	log          *logger.Logger
	pollInterval time.Duration
	retention    time.Duration
	channel      string
}

func NewOutboxWorker(relay *postgres.OutboxRelay, pool *pgxpool.Pool, cfg *config.Config, log *logger.Logger) *OutboxWorker {
	return &OutboxWorker{
		relay:        relay,
		pool:         pool,
		log:          log.WithComponent("worker"),
		pollInterval: cfg.OutboxPollInterval,
		retention:    cfg.OutboxRetention,
		channel:      cfg.OutboxChannel,
	}
}

// Run relays until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(5 * time.Minute)
	defer statsTicker.Stop()

	w.log.Infow("relaying outbox", "channel", w.channel, "interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.purge(ctx)
		case <-statsTicker.C:
			postgres.LogPoolStats(ctx, w.pool)
		}
	}
}

// drain processes full batches back to back so a backlog clears before the next tick.
func (w *OutboxWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		batchCtx := appctx.StartTrace(ctx, appctx.OriginWorker)
		n, err := w.relay.ProcessBatch(batchCtx)
		if err != nil {
			w.log.WithContext(batchCtx).Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.WithContext(batchCtx).Debugw("published outbox batch", "count", n)
		}
		if n == 0 {
			return
		}
	}
}

func (w *OutboxWorker) purge(ctx context.Context) {
	n, err := w.relay.PurgePublished(ctx, w.retention)
	if err != nil {
		w.log.Errorw("outbox purge failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
