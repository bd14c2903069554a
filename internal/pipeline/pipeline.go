// Package pipeline implements the tick ingestion pipeline: a bounded,
// rate-limited, retrying queue that normalizes raw quotes and
// dual-writes them to the cache mirror and the durable tick store,
// enqueueing a candle job for every BID tick.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/normalize"
	"fxmd-ingestor/internal/queue"
)

// Catalog resolves a symbol's contract size from the in-memory,
// bootstrap-built map. It is the primary source; DurableStore's
// fallback lookup is only consulted on a miss.
type Catalog map[string]decimal.Decimal

// ContractSize looks up symbol in the catalog.
func (c Catalog) ContractSize(symbol string) (decimal.Decimal, bool) {
	v, ok := c[symbol]
	return v, ok
}

// DurableStore is the tick pipeline's durable write target plus the
// rare-path contract-size fallback for a symbol missing at boot.
type DurableStore interface {
	InsertTick(tick model.Tick) error
	ContractSizeFallback(symbol string) (decimal.Decimal, error)
}

// Cache is the pipeline's cache mirror target.
type Cache interface {
	AppendTick(ctx context.Context, tick model.Tick) error
}

// CandleEnqueuer is the candle engine's intake, invoked only for BID
// ticks.
type CandleEnqueuer interface {
	Enqueue(ctx context.Context, tick model.Tick) error
}

// Pipeline is the tick ingestion pipeline: a queue.Pool wired to the
// catalog, durable store, cache, and candle engine.
type Pipeline struct {
	pool    *queue.Pool
	catalog Catalog
	store   DurableStore
	cache   Cache
	candles CandleEnqueuer
	log     *zap.SugaredLogger
}

// New builds a Pipeline. cfg should carry the concurrency, rate
// limit, retry, and timeout contracts from the tick pipeline's spec
// (5 workers, 100 jobs/s, 3 attempts, 1s backoff start, 30s timeout).
func New(cfg queue.Config, catalog Catalog, store DurableStore, cache Cache, candles CandleEnqueuer, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		pool:    queue.New(cfg, log),
		catalog: catalog,
		store:   store,
		cache:   cache,
		candles: candles,
		log:     log,
	}
}

// Start launches the pipeline's worker pool.
func (p *Pipeline) Start(ctx context.Context) { p.pool.Start(ctx) }

// Stop drains in-flight jobs and stops the worker pool.
func (p *Pipeline) Stop(ctx context.Context) { p.pool.Stop(ctx) }

// Submit enqueues a raw quote for normalization and dual-write. The
// job id follows "{symbol}_{side}_{nowMs}"; no cross-job ordering is
// guaranteed once more than one worker is running.
func (p *Pipeline) Submit(ctx context.Context, raw model.RawQuote) error {
	jobID := fmt.Sprintf("%s_%s_%d", raw.Symbol, raw.Side, time.Now().UnixMilli())
	return p.pool.Enqueue(ctx, queue.Job{
		ID:  jobID,
		Run: func(ctx context.Context) error { return p.process(ctx, raw) },
	})
}

// process resolves the contract size, normalizes the quote, appends
// it to the cache list, and inserts it into the durable tick table.
// The cache append happens before the durable insert: the cache may
// briefly hold a tick the durable store later rejects on a lots
// conflict.
func (p *Pipeline) process(ctx context.Context, raw model.RawQuote) error {
	contractSize, known := p.catalog.ContractSize(raw.Symbol)
	if !known {
		var err error
		contractSize, err = p.store.ContractSizeFallback(raw.Symbol)
		if err != nil {
			return fmt.Errorf("resolve contract size for %s: %w", raw.Symbol, err)
		}
		known = true
	}

	tick, err := normalize.Tick(raw, contractSize, known, time.Now())
	if err != nil {
		return err
	}

	if err := p.cache.AppendTick(ctx, tick); err != nil {
		return fmt.Errorf("append tick to cache: %w", err)
	}
	if err := p.store.InsertTick(tick); err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}

	if tick.Side != model.SideBid {
		return nil
	}
	if err := p.candles.Enqueue(ctx, tick); err != nil {
		return fmt.Errorf("enqueue candle job: %w", err)
	}
	return nil
}
