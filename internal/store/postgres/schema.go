package postgres

import (
	"fmt"
	"strings"
)

// EnsureSymbolSchema creates the three per-symbol tables bootstrap
// needs if they are not already present: ticks_<sym>_bid,
// ticks_<sym>_ask, and candles_<sym>_bid. Symbol names are lowercased
// when composing table names.
func (s *Store) EnsureSymbolSchema(symbol string) error {
	sym := strings.ToLower(symbol)

	for _, side := range []string{"bid", "ask"} {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ticks_%s_%s (
			ticktime timestamptz NOT NULL,
			lots integer PRIMARY KEY,
			price numeric NOT NULL
		)`, sym, side)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure ticks_%s_%s: %w", sym, side, err)
		}
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS candles_%s_bid (
		candlesize text,
		lots smallint,
		candletime timestamptz,
		open numeric(12,5),
		high numeric(12,5),
		low numeric(12,5),
		close numeric(12,5),
		PRIMARY KEY (candlesize, lots, candletime)
	)`, sym)
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("ensure candles_%s_bid: %w", sym, err)
	}
	return nil
}
