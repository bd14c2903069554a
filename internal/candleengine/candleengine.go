// Package candleengine implements multi-timeframe OHLC aggregation
// over BID ticks: a cache-first read-modify-write per timeframe
// bucket, followed by an idempotent durable upsert. Candle updates for
// a given (symbol, timeframe, candletime) rely on the engine's queue
// running at concurrency 1 for correctness; nothing in-process
// synchronizes concurrent updates to the same bucket.
package candleengine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/queue"
)

// Cache is the candle engine's live per-bucket OHLC store.
type Cache interface {
	GetCandle(ctx context.Context, symbol string, tf model.Timeframe, candleTime time.Time) (model.Candle, bool, error)
	PutCandle(ctx context.Context, candle model.Candle) error
}

// DurableStore is the candle engine's durable write target. The
// update must use GREATEST/LEAST rather than an unconditional
// overwrite, so re-applying the same tick on retry never widens the
// range past a single application.
type DurableStore interface {
	UpsertCandle(candle model.Candle) error
}

// Engine is the candle aggregation queue: one job per BID tick,
// updating every active timeframe bucket.
type Engine struct {
	pool  *queue.Pool
	cache Cache
	store DurableStore
	log   *zap.SugaredLogger
}

// New builds an Engine. cfg should carry the candle engine's
// contracts (concurrency 1 by default, 50 jobs/s, 3 attempts, 1s
// backoff start, 30s timeout).
func New(cfg queue.Config, cache Cache, store DurableStore, log *zap.SugaredLogger) *Engine {
	return &Engine{
		pool:  queue.New(cfg, log),
		cache: cache,
		store: store,
		log:   log,
	}
}

// Start launches the engine's worker pool.
func (e *Engine) Start(ctx context.Context) { e.pool.Start(ctx) }

// Stop drains in-flight jobs and stops the worker pool.
func (e *Engine) Stop(ctx context.Context) { e.pool.Stop(ctx) }

// Enqueue submits a BID tick for aggregation across every active
// timeframe.
func (e *Engine) Enqueue(ctx context.Context, tick model.Tick) error {
	jobID := fmt.Sprintf("%s_%d", tick.Symbol, tick.TickTime.UnixMilli())
	return e.pool.Enqueue(ctx, queue.Job{
		ID:  jobID,
		Run: func(ctx context.Context) error { return e.process(ctx, tick) },
	})
}

// process applies tick to every active timeframe's bucket. Failure of
// any one timeframe aborts the job; a retry re-applies all of them,
// which is safe because both the cache and durable paths are
// idempotent under re-application of the same tick.
func (e *Engine) process(ctx context.Context, tick model.Tick) error {
	for _, tf := range model.Timeframes {
		candleTime := model.CandleTime(tick.TickTime, tf)

		if err := e.applyCache(ctx, tick, tf, candleTime); err != nil {
			return fmt.Errorf("cache candle %s/%s: %w", tick.Symbol, tf, err)
		}
		if err := e.applyDurable(tick, tf, candleTime); err != nil {
			return fmt.Errorf("durable candle %s/%s: %w", tick.Symbol, tf, err)
		}
	}
	return nil
}

// applyCache reads the live bucket, widens high/low and overwrites
// close, or creates a fresh bucket with all four OHLC fields equal to
// the tick's price, then writes the result back.
func (e *Engine) applyCache(ctx context.Context, tick model.Tick, tf model.Timeframe, candleTime time.Time) error {
	existing, ok, err := e.cache.GetCandle(ctx, tick.Symbol, tf, candleTime)
	if err != nil {
		return err
	}

	candle := existing
	if ok {
		if tick.Price.GreaterThan(candle.High) {
			candle.High = tick.Price
		}
		if tick.Price.LessThan(candle.Low) {
			candle.Low = tick.Price
		}
		candle.Close = tick.Price
	} else {
		candle = model.Candle{
			Symbol: tick.Symbol, Timeframe: tf, Lots: 1, CandleTime: candleTime,
			Open: tick.Price, High: tick.Price, Low: tick.Price, Close: tick.Price,
		}
	}
	return e.cache.PutCandle(ctx, candle)
}

// applyDurable issues the durable-path upsert. The store's UpsertCandle
// implements the INSERT-or-GREATEST/LEAST-UPDATE itself; this caller
// only supplies the tick's price as the candidate close.
func (e *Engine) applyDurable(tick model.Tick, tf model.Timeframe, candleTime time.Time) error {
	return e.store.UpsertCandle(model.Candle{
		Symbol: tick.Symbol, Timeframe: tf, Lots: 1, CandleTime: candleTime,
		Open: tick.Price, High: tick.Price, Low: tick.Price, Close: tick.Price,
	})
}
