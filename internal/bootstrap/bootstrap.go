// Package bootstrap runs the startup sequence: load the currency-pair
// catalog, ensure per-symbol durable schemas, and hydrate the cache
// mirror from durable storage. It runs once, at process start; a
// session reconnect does not re-run it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/pipeline"
	"fxmd-ingestor/internal/store/cache"
	"fxmd-ingestor/internal/store/postgres"
)

// Result is everything bootstrap produces for the rest of the
// process to consume.
type Result struct {
	// Pairs is the full catalog, including ineligible rows, in the
	// order read from the durable store.
	Pairs []model.CurrencyPair
	// Catalog holds only eligible pairs, for the pipeline's in-memory
	// contract-size lookup.
	Catalog pipeline.Catalog
}

// Run loads the catalog, ensures schemas, and hydrates the cache for
// every eligible pair. A failure at any step is logged, not fatal:
// the session engine proceeds regardless, per the bootstrap
// component's error policy. A catalog load failure yields an empty
// result rather than aborting startup.
func Run(ctx context.Context, store *postgres.Store, c *cache.Cache, log *zap.SugaredLogger) Result {
	pairs, err := store.LoadCatalog()
	if err != nil {
		log.Warnw("bootstrap: load catalog failed, starting with an empty catalog", "err", err)
		return Result{Catalog: pipeline.Catalog{}}
	}

	catalog := make(pipeline.Catalog)
	for _, pair := range pairs {
		if !pair.Eligible() {
			log.Infow("pair ineligible, not subscribing", "symbol", pair.Symbol)
			continue
		}
		catalog[pair.Symbol] = *pair.ContractSize

		if err := store.EnsureSymbolSchema(pair.Symbol); err != nil {
			log.Warnw("ensure schema failed", "symbol", pair.Symbol, "err", err)
			continue
		}
		if err := hydrateCache(ctx, store, c, pair.Symbol, log); err != nil {
			log.Warnw("cache hydration failed", "symbol", pair.Symbol, "err", err)
		}
	}

	return Result{Pairs: pairs, Catalog: catalog}
}

// hydrateCache publishes a durable-store snapshot of ticks and
// candles into their bootstrap-only cache keys for one symbol.
func hydrateCache(ctx context.Context, store *postgres.Store, c *cache.Cache, symbol string, log *zap.SugaredLogger) error {
	for _, side := range []model.Side{model.SideBid, model.SideAsk} {
		ticks, err := store.RecentTicks(symbol, side)
		if err != nil {
			return fmt.Errorf("read ticks %s/%s: %w", symbol, side, err)
		}
		if err := c.SnapshotTicks(ctx, symbol, side, ticks); err != nil {
			return fmt.Errorf("snapshot ticks %s/%s: %w", symbol, side, err)
		}
	}

	candles, err := store.RecentCandles(symbol)
	if err != nil {
		return fmt.Errorf("read candles %s: %w", symbol, err)
	}
	if err := c.SnapshotCandles(ctx, symbol, candles); err != nil {
		return fmt.Errorf("snapshot candles %s: %w", symbol, err)
	}

	log.Infow("cache hydrated", "symbol", symbol)
	return nil
}
