// Command ingestor runs the FIX 4.4 market-data ingestion daemon: it
// maintains a session with the configured liquidity provider,
// subscribes to bid/ask streams for the durable catalog's eligible
// pairs, and materializes quotes into the tick store, OHLC candles,
// and the cache mirror.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxmd-ingestor/internal/bootstrap"
	"fxmd-ingestor/internal/candleengine"
	"fxmd-ingestor/internal/config"
	"fxmd-ingestor/internal/logging"
	"fxmd-ingestor/internal/pipeline"
	"fxmd-ingestor/internal/queue"
	"fxmd-ingestor/internal/session"
	"fxmd-ingestor/internal/store/cache"
	"fxmd-ingestor/internal/store/postgres"
	"fxmd-ingestor/internal/subscription"
)

func main() {
	log := logging.New("ingestor")
	defer log.Sync()

	cfg := config.Load()

	store, err := postgres.Open(cfg.PGHost, cfg.PGPort, cfg.PGUser, cfg.PGPassword, cfg.PGDatabase)
	if err != nil {
		log.Fatalw("postgres connect failed", "err", err)
	}

	redisCache := cache.New(cfg.RedisHost, cfg.RedisPort, log.With("component", "cache"))

	ctx, cancel := context.WithCancel(context.Background())

	boot := bootstrap.Run(ctx, store, redisCache, log.With("component", "bootstrap"))
	log.Infow("bootstrap complete", "pairs", len(boot.Pairs), "eligible", len(boot.Catalog))

	candles := candleengine.New(queue.Config{
		Name: "candles", Concurrency: 1, RatePerSecond: 50,
		MaxAttempts: 3, BackoffStart: time.Second, JobTimeout: 30 * time.Second, QueueSize: 256,
	}, redisCache, store, log.With("component", "candleengine"))

	ticks := pipeline.New(queue.Config{
		Name: "ticks", Concurrency: 5, RatePerSecond: 100,
		MaxAttempts: 3, BackoffStart: time.Second, JobTimeout: 30 * time.Second, QueueSize: 1024,
	}, boot.Catalog, store, redisCache, candles, log.With("component", "pipeline"))

	candles.Start(ctx)
	ticks.Start(ctx)

	subs := subscription.New(boot.Pairs, log.With("component", "subscription"))

	eng := session.New(session.Config{
		Server:       cfg.FixServer,
		Port:         cfg.FixPort,
		SenderCompID: cfg.SenderCompID,
		TargetCompID: cfg.TargetCompID,
		Username:     cfg.Username,
		Password:     cfg.Password,

		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 1000,
		SubscribeDelay:       time.Second,
	}, subs, ticks, redisCache, log.With("component", "session"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	sessionDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(sessionDone)
	}()

	log.Info("ingestor running")
	<-sigCh
	log.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)

	eng.Shutdown(shutdownCtx)
	cancel()

	select {
	case <-sessionDone:
	case <-shutdownCtx.Done():
		log.Warn("session shutdown timed out")
	}

	ticks.Stop(shutdownCtx)
	candles.Stop(shutdownCtx)
	shutdownCancel()

	if err := redisCache.Close(); err != nil {
		log.Warnw("cache close failed", "err", err)
	}
	if err := store.Close(); err != nil {
		log.Warnw("durable store close failed", "err", err)
	}

	log.Info("shutdown complete")
}
