package subscription

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fxmd-ingestor/internal/logging"
	"fxmd-ingestor/internal/model"
)

type fakeSender struct {
	sent []string
	fail map[string]bool
}

func (f *fakeSender) SendMarketDataRequest(symbol, mdReqID string) error {
	if f.fail[symbol] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, symbol)
	return nil
}

func TestDispatch_SkipsIneligiblePairs(t *testing.T) {
	size := decimal.RequireFromString("100000")
	pairs := []model.CurrencyPair{
		{Symbol: "EURUSD", ContractSize: &size},
		{Symbol: "XAUUSD", ContractSize: nil},
	}
	mgr := New(pairs, logging.Noop())
	sender := &fakeSender{}
	mgr.Dispatch(sender)

	if len(sender.sent) != 1 || sender.sent[0] != "EURUSD" {
		t.Fatalf("sent = %v, want exactly [EURUSD]", sender.sent)
	}
}

func TestDispatch_OneRequestPerEligiblePair(t *testing.T) {
	size := decimal.RequireFromString("1000")
	pairs := []model.CurrencyPair{
		{Symbol: "EURUSD", ContractSize: &size},
		{Symbol: "GBPUSD", ContractSize: &size},
		{Symbol: "USDJPY", ContractSize: &size},
	}
	mgr := New(pairs, logging.Noop())
	sender := &fakeSender{}
	mgr.Dispatch(sender)

	if len(sender.sent) != 3 {
		t.Fatalf("sent %d requests, want 3", len(sender.sent))
	}
}

func TestDispatch_FailureOnOnePairDoesNotStopThePass(t *testing.T) {
	size := decimal.RequireFromString("1000")
	pairs := []model.CurrencyPair{
		{Symbol: "EURUSD", ContractSize: &size},
		{Symbol: "GBPUSD", ContractSize: &size},
	}
	mgr := New(pairs, logging.Noop())
	sender := &fakeSender{fail: map[string]bool{"EURUSD": true}}
	mgr.Dispatch(sender)

	if len(sender.sent) != 1 || sender.sent[0] != "GBPUSD" {
		t.Fatalf("sent = %v, want exactly [GBPUSD] after EURUSD failed", sender.sent)
	}
}

func TestManager_PreservesPairOrder(t *testing.T) {
	size := decimal.RequireFromString("1000")
	pairs := []model.CurrencyPair{
		{Symbol: "AAA", ContractSize: &size},
		{Symbol: "BBB", ContractSize: &size},
	}
	mgr := New(pairs, logging.Noop())
	sender := &fakeSender{}
	mgr.Dispatch(sender)

	if strings.Join(sender.sent, ",") != "AAA,BBB" {
		t.Fatalf("sent = %v, want pairs dispatched in catalog order", sender.sent)
	}
}
