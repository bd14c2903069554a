package postgres

import (
	"github.com/shopspring/decimal"

	"fxmd-ingestor/internal/model"
)

// LoadCatalog reads the read-only input catalog. Rows with a null
// contractsize are included but marked ineligible; the catalog is
// read once at bootstrap and held immutable for the process lifetime.
func (s *Store) LoadCatalog() ([]model.CurrencyPair, error) {
	rows, err := s.db.Query(`SELECT currpair, contractsize FROM currpairdetails`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.CurrencyPair
	for rows.Next() {
		var symbol string
		var contractSize *string
		if err := rows.Scan(&symbol, &contractSize); err != nil {
			return nil, err
		}
		pair := model.CurrencyPair{Symbol: symbol}
		if contractSize != nil {
			d, err := decimal.NewFromString(*contractSize)
			if err != nil {
				return nil, err
			}
			pair.ContractSize = &d
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

// ContractSizeFallback is the rare-path lookup the tick pipeline
// uses when a symbol's contract size was null in the bootstrap
// catalog snapshot; the bootstrap catalog map is the primary source
// and this call should almost never execute.
func (s *Store) ContractSizeFallback(symbol string) (decimal.Decimal, error) {
	var contractSize string
	err := s.db.QueryRow(`SELECT contractsize FROM currpairdetails WHERE currpair = $1`, symbol).Scan(&contractSize)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(contractSize)
}
