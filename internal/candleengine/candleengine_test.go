package candleengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fxmd-ingestor/internal/logging"
	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/queue"
)

type fakeCache struct {
	mu      sync.Mutex
	candles map[string]model.Candle
}

func newFakeCache() *fakeCache { return &fakeCache{candles: make(map[string]model.Candle)} }

func (f *fakeCache) key(symbol string, tf model.Timeframe, ct time.Time) string {
	return symbol + "|" + string(tf) + "|" + ct.Format(time.RFC3339)
}

func (f *fakeCache) GetCandle(ctx context.Context, symbol string, tf model.Timeframe, candleTime time.Time) (model.Candle, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candles[f.key(symbol, tf, candleTime)]
	return c, ok, nil
}

func (f *fakeCache) PutCandle(ctx context.Context, candle model.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candles[f.key(candle.Symbol, candle.Timeframe, candle.CandleTime)] = candle
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	candles map[string]model.Candle
}

func newFakeStore() *fakeStore { return &fakeStore{candles: make(map[string]model.Candle)} }

func (f *fakeStore) key(c model.Candle) string {
	return c.Symbol + "|" + string(c.Timeframe) + "|" + c.CandleTime.Format(time.RFC3339)
}

func (f *fakeStore) UpsertCandle(candle model.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(candle)
	existing, ok := f.candles[k]
	if !ok {
		f.candles[k] = candle
		return nil
	}
	if candle.High.GreaterThan(existing.High) {
		existing.High = candle.High
	}
	if candle.Low.LessThan(existing.Low) {
		existing.Low = candle.Low
	}
	existing.Close = candle.Close
	f.candles[k] = existing
	return nil
}

func newTestEngine(cache Cache, store DurableStore) *Engine {
	cfg := queue.Config{
		Name: "candles", Concurrency: 1, RatePerSecond: 1000,
		MaxAttempts: 1, BackoffStart: time.Millisecond, JobTimeout: time.Second, QueueSize: 8,
	}
	return New(cfg, cache, store, logging.Noop())
}

func tickAt(t *testing.T, symbol, price string, ts time.Time) model.Tick {
	t.Helper()
	return model.Tick{
		Symbol: symbol, Side: model.SideBid, TickTime: ts,
		Lots: 1, Price: decimal.RequireFromString(price),
	}
}

func waitForCandle(t *testing.T, cache *fakeCache, symbol string, tf model.Timeframe, ct time.Time) model.Candle {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if c, ok, _ := cache.GetCandle(context.Background(), symbol, tf, ct); ok {
			return c
		}
		select {
		case <-deadline:
			t.Fatalf("candle %s/%s/%s never appeared", symbol, tf, ct)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_FirstTickCreatesCandle(t *testing.T) {
	cache := newFakeCache()
	store := newFakeStore()
	e := newTestEngine(cache, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	ts := time.Date(2026, 7, 31, 12, 0, 30, 0, time.UTC)
	tick := tickAt(t, "EURUSD", "1.10000", ts)
	require.NoError(t, e.Enqueue(ctx, tick))

	candleTime := model.CandleTime(ts, model.TimeframeM1)
	c := waitForCandle(t, cache, "EURUSD", model.TimeframeM1, candleTime)
	if !c.Open.Equal(tick.Price) || !c.High.Equal(tick.Price) || !c.Low.Equal(tick.Price) || !c.Close.Equal(tick.Price) {
		t.Fatalf("candle = %+v, want all OHLC equal to %s", c, tick.Price)
	}
}

func TestEngine_SecondTickWidensHighKeepsOpen(t *testing.T) {
	cache := newFakeCache()
	store := newFakeStore()
	e := newTestEngine(cache, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	base := time.Date(2026, 7, 31, 12, 0, 30, 0, time.UTC)
	first := tickAt(t, "EURUSD", "1.10000", base)
	require.NoError(t, e.Enqueue(ctx, first))
	candleTime := model.CandleTime(base, model.TimeframeM1)
	waitForCandle(t, cache, "EURUSD", model.TimeframeM1, candleTime)

	second := tickAt(t, "EURUSD", "1.10050", base.Add(15*time.Second))
	require.NoError(t, e.Enqueue(ctx, second))

	deadline := time.After(time.Second)
	for {
		c, _, _ := cache.GetCandle(ctx, "EURUSD", model.TimeframeM1, candleTime)
		if c.Close.Equal(second.Price) {
			if !c.Open.Equal(first.Price) {
				t.Fatalf("Open mutated: got %s, want %s", c.Open, first.Price)
			}
			if !c.High.Equal(second.Price) {
				t.Fatalf("High = %s, want %s", c.High, second.Price)
			}
			if !c.Low.Equal(first.Price) {
				t.Fatalf("Low = %s, want %s", c.Low, first.Price)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("candle never updated with second tick, got %+v", c)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_BucketRolloverCreatesNewCandle(t *testing.T) {
	cache := newFakeCache()
	store := newFakeStore()
	e := newTestEngine(cache, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	firstBucket := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	nextBucket := time.Date(2026, 7, 31, 12, 1, 2, 0, time.UTC)

	require.NoError(t, e.Enqueue(ctx, tickAt(t, "EURUSD", "1.10000", firstBucket)))
	waitForCandle(t, cache, "EURUSD", model.TimeframeM1, model.CandleTime(firstBucket, model.TimeframeM1))

	require.NoError(t, e.Enqueue(ctx, tickAt(t, "EURUSD", "1.10500", nextBucket)))
	c := waitForCandle(t, cache, "EURUSD", model.TimeframeM1, model.CandleTime(nextBucket, model.TimeframeM1))
	if !c.Open.Equal(decimal.RequireFromString("1.10500")) {
		t.Fatalf("new bucket Open = %s, want 1.10500", c.Open)
	}

	old, ok, _ := cache.GetCandle(ctx, "EURUSD", model.TimeframeM1, model.CandleTime(firstBucket, model.TimeframeM1))
	if !ok || !old.Close.Equal(decimal.RequireFromString("1.10000")) {
		t.Fatalf("old bucket should be untouched by the new tick, got %+v", old)
	}
}
