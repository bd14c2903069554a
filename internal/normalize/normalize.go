// Package normalize maps a raw FIX market-data entry into a persisted
// Tick: side resolution from tag 269, lot computation from contract
// size, and tick-time derivation from tag 273 (or wall-clock "now" when
// absent).
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fxmd-ingestor/internal/model"
)

// ErrUnknownContractSize is returned by Tick when it is told (known is
// false) that no contract size is available for the quote's symbol.
// The pipeline lets retries exhaust and drops the job.
var ErrUnknownContractSize = errors.New("normalize: unknown contract size")

// sourceTimeLayout is the wire format of tag 273 (MDEntryTime), "HH:MM:SS".
const sourceTimeLayout = "15:04:05"

// SideFromEntryType maps a tag 269 (MDEntryType) value to a Side. Only
// 0 (Bid) and 1 (Offer) are recognized; any other value is dropped by
// the caller per spec.
func SideFromEntryType(entryType string) (model.Side, bool) {
	switch entryType {
	case "0":
		return model.SideBid, true
	case "1":
		return model.SideAsk, true
	default:
		return "", false
	}
}

// Tick builds a persisted Tick from a raw quote and its resolved
// contract size. known is false when no contract size could be found
// for raw.Symbol, in which case the tick is rejected.
func Tick(raw model.RawQuote, contractSize decimal.Decimal, known bool, now time.Time) (model.Tick, error) {
	if !known {
		return model.Tick{}, fmt.Errorf("%w: %s", ErrUnknownContractSize, raw.Symbol)
	}

	lots := raw.Size.Div(contractSize).Round(0).IntPart()

	tickTime := now.UTC()
	if raw.SourceTime != "" {
		if t, err := parseSourceTime(raw.SourceTime, now); err == nil {
			tickTime = t
		}
	}

	return model.Tick{
		Symbol:   raw.Symbol,
		Side:     raw.Side,
		TickTime: tickTime,
		Lots:     lots,
		Price:    raw.Price,
	}, nil
}

// parseSourceTime applies a "HH:MM:SS" wall-clock time to today's UTC
// date, per now. This does not correct for date rollover at midnight:
// a tick sent at 23:59:59 and normalized just after UTC midnight is
// mislabeled onto the wrong day. That is a known, preserved quirk (see
// the tick normalizer's design notes), not a bug to fix here.
func parseSourceTime(raw string, now time.Time) (time.Time, error) {
	t, err := time.Parse(sourceTimeLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	base := now.UTC()
	return time.Date(base.Year(), base.Month(), base.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}
