package session

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"fxmd-ingestor/internal/fixcodec"
	"fxmd-ingestor/internal/logging"
	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/subscription"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	got  []model.RawQuote
	done chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{done: make(chan struct{}, 8)}
}

func (f *fakeDispatcher) Submit(ctx context.Context, raw model.RawQuote) error {
	f.mu.Lock()
	f.got = append(f.got, raw)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

type fakeCacheConn struct{ connects int32 }

func (f *fakeCacheConn) Connect(ctx context.Context) error { return nil }

// startFakeCounterparty listens on an ephemeral port, accepts exactly
// one connection, reads the Logon frame, and replies with a Logon
// response followed by the given extra frames.
func startFakeCounterparty(t *testing.T, extra ...[]byte) (addr string, receivedLogon chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	receivedLogon = make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		var all []byte
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			all = append(all, buf[:n]...)
			msgs, _ := fixcodec.Decode(all)
			if len(msgs) > 0 {
				receivedLogon <- msgs[0].MsgType
				break
			}
		}

		reply := fixcodec.Encode(map[fixcodec.Tag]string{
			fixcodec.TagMsgType:      fixcodec.MsgTypeLogon,
			fixcodec.TagSenderCompID: "SERVER",
			fixcodec.TagTargetCompID: "CLIENT",
			fixcodec.TagMsgSeqNum:    "1",
			fixcodec.TagSendingTime:  time.Now().UTC().Format(fixcodec.FixTimeFormat),
		}, nil)
		if _, err := conn.Write(reply); err != nil {
			return
		}

		for _, frame := range extra {
			time.Sleep(10 * time.Millisecond)
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}

		// Keep the connection open so the client's read loop blocks
		// rather than erroring immediately after the test's assertions.
		time.Sleep(2 * time.Second)
	}()

	return ln.Addr().String(), receivedLogon
}

func TestEngine_LogonHandshake(t *testing.T) {
	addr, receivedLogon := startFakeCounterparty(t)
	host, port, _ := net.SplitHostPort(addr)

	dispatcher := newFakeDispatcher()
	cache := &fakeCacheConn{}
	eng := New(Config{
		Server: host, Port: port,
		SenderCompID: "CLIENT", TargetCompID: "SERVER",
		Username: "u", Password: "p",
		ReconnectDelay: time.Hour, MaxReconnectAttempts: 1,
	}, subscription.New(nil, logging.Noop()), dispatcher, cache, logging.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	select {
	case msgType := <-receivedLogon:
		if msgType != fixcodec.MsgTypeLogon {
			t.Fatalf("counterparty received msg type %q, want Logon", msgType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("counterparty never received a Logon frame")
	}

	deadline := time.After(time.Second)
	for eng.State() != StateLoggedOn {
		select {
		case <-deadline:
			t.Fatalf("engine never reached LoggedOn, state=%d", eng.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_MarketDataSnapshotDispatchesTicks(t *testing.T) {
	snapshot := []byte("8=FIX.4.4\x019=0\x0135=W\x0155=EURUSD\x01268=1\x01" +
		"269=0\x01270=1.10000\x01271=100000\x01273=12:00:30\x01" +
		"10=000\x01")

	addr, _ := startFakeCounterparty(t, snapshot)
	host, port, _ := net.SplitHostPort(addr)

	dispatcher := newFakeDispatcher()
	cache := &fakeCacheConn{}
	eng := New(Config{
		Server: host, Port: port,
		SenderCompID: "CLIENT", TargetCompID: "SERVER",
		Username: "u", Password: "p",
		ReconnectDelay: time.Hour, MaxReconnectAttempts: 1,
	}, subscription.New(nil, logging.Noop()), dispatcher, cache, logging.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	select {
	case <-dispatcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick was never dispatched from the market data snapshot")
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.got) != 1 {
		t.Fatalf("got %d ticks, want 1", len(dispatcher.got))
	}
	raw := dispatcher.got[0]
	if raw.Symbol != "EURUSD" || raw.Side != model.SideBid {
		t.Fatalf("raw quote = %+v, want EURUSD BID", raw)
	}
	if !strings.EqualFold(raw.SourceTime, "12:00:30") {
		t.Fatalf("SourceTime = %q, want 12:00:30", raw.SourceTime)
	}
}
