// Package model holds the plain data types shared across the ingestion
// pipeline: the currency-pair catalog, raw quotes coming off the wire,
// persisted ticks, and aggregated candles.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the quote side of a tick, BID or ASK.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Timeframe is a candle aggregation bucket width.
type Timeframe string

const (
	TimeframeM1 Timeframe = "M1"
	TimeframeH1 Timeframe = "H1"
	TimeframeD1 Timeframe = "D1"
)

// DurationMs returns the bucket width of a timeframe in milliseconds.
func (t Timeframe) DurationMs() int64 {
	switch t {
	case TimeframeM1:
		return 60_000
	case TimeframeH1:
		return 3_600_000
	case TimeframeD1:
		return 86_400_000
	default:
		return 0
	}
}

// Timeframes lists every active aggregation bucket, in the order
// candle jobs process them.
var Timeframes = []Timeframe{TimeframeM1, TimeframeH1, TimeframeD1}

// CurrencyPair is a row from the durable catalog. A nil ContractSize
// marks the pair ineligible: it stays in the catalog but is never
// subscribed and never produces ticks.
type CurrencyPair struct {
	Symbol       string
	ContractSize *decimal.Decimal
}

// Eligible reports whether the pair carries a contract size and can be
// subscribed.
func (p CurrencyPair) Eligible() bool {
	return p.ContractSize != nil
}

// RawQuote is a single MDEntry extracted from a FIX Market Data
// Snapshot or Incremental Refresh message. It is transient: it lives
// only inside a tick pipeline job and is discarded once normalized.
type RawQuote struct {
	Symbol     string
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	SourceTime string // raw tag 273 value, "HH:MM:SS", empty if absent
	ReqID      string
}

// Tick is a persisted quote observation.
type Tick struct {
	Symbol   string
	Side     Side
	TickTime time.Time
	Lots     int64
	Price    decimal.Decimal
}

// Candle is one OHLC bucket for a symbol/timeframe/time combination.
// Lots is always 1 on candle rows; it denotes aggregation granularity,
// not the originating tick's lot value.
type Candle struct {
	Symbol     string
	Timeframe  Timeframe
	Lots       int
	CandleTime time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
}

// CandleTime buckets a tick timestamp into the start of its timeframe
// window: floor(tickTimeMs / durationMs) * durationMs.
func CandleTime(tickTime time.Time, tf Timeframe) time.Time {
	d := tf.DurationMs()
	ms := tickTime.UnixMilli()
	bucket := (ms / d) * d
	return time.UnixMilli(bucket).UTC()
}
