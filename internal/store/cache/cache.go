// Package cache mirrors ticks and candles into Redis. Keys follow the
// partitioning spec.md names: ticks_{sym}_{side} is an append-only
// list, candles_{sym} is a bootstrap-only snapshot list, and
// candle_{sym}_{timeframe}_{candletime} is the live per-bucket record.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fxmd-ingestor/internal/model"
)

// Cache wraps a redis client with the reconnect-idempotence the
// session engine's warm-up relies on: Connect is a no-op once already
// connected, where the original design re-opened the connection on
// every reconnect and errored doing so.
type Cache struct {
	client *redis.Client
	log    *zap.SugaredLogger

	mu        sync.Mutex
	connected bool
}

// New builds a Cache pointed at host:port. The connection is not
// established until Connect is called.
func New(host, port string, log *zap.SugaredLogger) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port)}),
		log:    log,
	}
}

// Connect establishes the Redis connection if it is not already
// connected. Safe to call on every session reconnect.
func (c *Cache) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	c.connected = true
	c.log.Info("cache connected")
	return nil
}

// MarkDisconnected clears the idempotence flag so the next Connect
// call re-pings. It does not close the client. The session engine
// does not call it; it only calls Connect.
func (c *Cache) MarkDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func tickListKey(symbol string, side model.Side) string {
	return fmt.Sprintf("ticks_%s_%s", strings.ToLower(symbol), side)
}

func candleSnapshotKey(symbol string) string {
	return fmt.Sprintf("candles_%s", strings.ToLower(symbol))
}

func candleKey(symbol string, tf model.Timeframe, candleTime time.Time) string {
	return fmt.Sprintf("candle_%s_%s_%s", strings.ToLower(symbol), tf, candleTime.Format(time.RFC3339))
}

// AppendTick pushes a serialized tick onto the ordered per-(symbol,
// side) list. Per the tick pipeline's job contract this happens
// before the durable insert, so the cache may briefly hold ticks the
// durable store later rejects on conflict.
func (c *Cache) AppendTick(ctx context.Context, tick model.Tick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	return c.client.RPush(ctx, tickListKey(tick.Symbol, tick.Side), data).Err()
}

// SnapshotTicks replaces the tick list for (symbol, side) with a
// durable-store read, used only during bootstrap hydration.
func (c *Cache) SnapshotTicks(ctx context.Context, symbol string, side model.Side, ticks []model.Tick) error {
	key := tickListKey(symbol, side)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, tick := range ticks {
		data, err := json.Marshal(tick)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, key, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SnapshotCandles replaces the bootstrap-only candles_{sym} list.
func (c *Cache) SnapshotCandles(ctx context.Context, symbol string, candles []model.Candle) error {
	key := candleSnapshotKey(symbol)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, candle := range candles {
		data, err := json.Marshal(candle)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, key, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetCandle reads the live OHLC record for a bucket. ok is false if
// the key does not exist yet.
func (c *Cache) GetCandle(ctx context.Context, symbol string, tf model.Timeframe, candleTime time.Time) (candle model.Candle, ok bool, err error) {
	data, err := c.client.Get(ctx, candleKey(symbol, tf, candleTime)).Bytes()
	if err == redis.Nil {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, err
	}
	if err := json.Unmarshal(data, &candle); err != nil {
		return model.Candle{}, false, err
	}
	return candle, true, nil
}

// PutCandle writes back the live OHLC record for a bucket.
func (c *Cache) PutCandle(ctx context.Context, candle model.Candle) error {
	data, err := json.Marshal(candle)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, candleKey(candle.Symbol, candle.Timeframe, candle.CandleTime), data, 0).Err()
}
