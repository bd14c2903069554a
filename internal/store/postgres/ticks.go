package postgres

import (
	"fmt"
	"strings"

	"fxmd-ingestor/internal/model"
)

// InsertTick writes a tick into its per-(symbol, side) table. The
// primary key is lots alone: ON CONFLICT (lots) DO NOTHING means a
// second tick at the same lot value, even at a different time or
// price, is silently dropped. This is an acknowledged modelling quirk
// preserved from the source design, not a bug to fix here.
func (s *Store) InsertTick(tick model.Tick) error {
	table := fmt.Sprintf("ticks_%s_%s", strings.ToLower(tick.Symbol), tick.Side)
	stmt := fmt.Sprintf(`INSERT INTO %s (ticktime, lots, price) VALUES ($1, $2, $3)
		ON CONFLICT (lots) DO NOTHING`, table)
	_, err := s.db.Exec(stmt, tick.TickTime, tick.Lots, tick.Price)
	return err
}

// RecentTicks reads every tick in a symbol/side table, used only to
// hydrate the cache mirror at bootstrap.
func (s *Store) RecentTicks(symbol string, side model.Side) ([]model.Tick, error) {
	table := fmt.Sprintf("ticks_%s_%s", strings.ToLower(symbol), side)
	rows, err := s.db.Query(fmt.Sprintf(`SELECT ticktime, lots, price FROM %s ORDER BY ticktime`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		tick := model.Tick{Symbol: symbol, Side: side}
		if err := rows.Scan(&tick.TickTime, &tick.Lots, &tick.Price); err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	return ticks, rows.Err()
}
