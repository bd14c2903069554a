// Package subscription builds and dispatches Market Data Requests for
// the configured, eligible currency pairs after a successful logon.
package subscription

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fxmd-ingestor/internal/model"
)

// Sender dispatches one encoded Market Data Request over the live FIX
// session. It is implemented by the session engine, which owns the
// socket and the outbound sequence counter.
type Sender interface {
	SendMarketDataRequest(symbol, mdReqID string) error
}

// Manager iterates the eligible pair set and sends one Market Data
// Request per pair. Re-subscription happens only by full session
// reconnection; there is no incremental re-subscribe.
type Manager struct {
	pairs []model.CurrencyPair
	log   *zap.SugaredLogger
}

// New builds a Manager over the catalog snapshot read at bootstrap.
func New(pairs []model.CurrencyPair, log *zap.SugaredLogger) *Manager {
	return &Manager{pairs: pairs, log: log}
}

// Dispatch sends a Market Data Request for every eligible pair, in a
// single pass, over sender. Ineligible pairs (null contract size) are
// skipped; per-request failures are logged and do not stop the pass.
func (m *Manager) Dispatch(sender Sender) {
	for _, pair := range m.pairs {
		if !pair.Eligible() {
			continue
		}
		mdReqID := "MDR_" + uuid.NewString()
		if err := sender.SendMarketDataRequest(pair.Symbol, mdReqID); err != nil {
			m.log.Warnw("market data request failed", "symbol", pair.Symbol, "mdReqId", mdReqID, "err", err)
			continue
		}
		m.log.Infow("market data request sent", "symbol", pair.Symbol, "mdReqId", mdReqID)
	}
}
