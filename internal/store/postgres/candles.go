package postgres

import (
	"fmt"
	"strings"

	"fxmd-ingestor/internal/model"
)

// UpsertCandle applies the durable-path read-modify-write for a
// candle bucket. GREATEST/LEAST make the update idempotent under
// retries: re-applying the same tick's price never widens the
// high/low range further than a single application would. lots is
// always written as 1, independent of the originating tick's lots.
func (s *Store) UpsertCandle(candle model.Candle) error {
	table := fmt.Sprintf("candles_%s_bid", strings.ToLower(candle.Symbol))

	insert := fmt.Sprintf(`INSERT INTO %s (candlesize, lots, candletime, open, high, low, close)
		VALUES ($1, $2, $3, $4, $4, $4, $4)
		ON CONFLICT (candlesize, lots, candletime) DO UPDATE SET
			high = GREATEST(%s.high, EXCLUDED.high),
			low = LEAST(%s.low, EXCLUDED.low),
			close = EXCLUDED.close`, table, table, table)

	_, err := s.db.Exec(insert, string(candle.Timeframe), 1, candle.CandleTime, candle.Close)
	return err
}

// RecentCandles reads every candle row for a symbol, used only to
// hydrate the bootstrap cache snapshot.
func (s *Store) RecentCandles(symbol string) ([]model.Candle, error) {
	table := fmt.Sprintf("candles_%s_bid", strings.ToLower(symbol))
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT candlesize, lots, candletime, open, high, low, close FROM %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		candle := model.Candle{Symbol: symbol}
		var tf string
		if err := rows.Scan(&tf, &candle.Lots, &candle.CandleTime,
			&candle.Open, &candle.High, &candle.Low, &candle.Close); err != nil {
			return nil, err
		}
		candle.Timeframe = model.Timeframe(tf)
		candles = append(candles, candle)
	}
	return candles, rows.Err()
}
