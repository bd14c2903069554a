// Package session implements the FIX 4.4 session engine: TCP socket
// lifecycle, logon, passive heartbeat acknowledgement, sequence
// numbering, reconnection, and dispatch of inbound frames to the tick
// pipeline and subscription manager.
//
// This engine is deliberately not FIX-conformant: it never validates
// an inbound checksum, never checks for inbound sequence gaps, and
// never emits heartbeats or Test Request responses on its own timer.
// Those are acknowledged, preserved quirks of the source design, not
// oversights — see the candle/tick engine design notes for the
// matching quirks on the persistence side.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fxmd-ingestor/internal/fixcodec"
	"fxmd-ingestor/internal/model"
	"fxmd-ingestor/internal/normalize"
	"fxmd-ingestor/internal/subscription"
)

// State is the session's connection state machine:
// Disconnected -> Connecting -> LoggedOn -> Disconnected, with an
// implicit LoggingOn sub-state between TCP-connect and receipt of the
// Logon response folded into Connecting here.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedOn
)

// Dispatcher is the tick pipeline's intake, invoked for every
// recognized market-data entry.
type Dispatcher interface {
	Submit(ctx context.Context, raw model.RawQuote) error
}

// CacheConn is the cache mirror's connection lifecycle, as seen by
// the session engine: Connect is idempotent, a no-op once already
// connected, so it is safe to call on every reconnect attempt without
// erroring on an already-open connection.
type CacheConn interface {
	Connect(ctx context.Context) error
}

// Config holds the session engine's connection and timing parameters.
type Config struct {
	Server       string
	Port         string
	SenderCompID string
	TargetCompID string
	Username     string
	Password     string

	DialTimeout          time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	SubscribeDelay       time.Duration
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 1000
	}
	if c.SubscribeDelay <= 0 {
		c.SubscribeDelay = time.Second
	}
	return c
}

// Engine owns the socket and the outbound sequence counter
// exclusively: no other component mutates either.
type Engine struct {
	cfg   Config
	subs  *subscription.Manager
	ticks Dispatcher
	cache CacheConn
	log   *zap.SugaredLogger

	mu          sync.Mutex
	conn        net.Conn
	state       State
	outboundSeq uint64
	buf         []byte
}

// New builds a session Engine.
func New(cfg Config, subs *subscription.Manager, ticks Dispatcher, cache CacheConn, log *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:   cfg.withDefaults(),
		subs:  subs,
		ticks: ticks,
		cache: cache,
		log:   log,
	}
}

// Run drives the session engine until ctx is canceled: connect, log
// on, dispatch subscriptions, read and route frames until the
// connection drops, then reconnect with a fixed delay up to
// MaxReconnectAttempts. After the cap is reached the engine stops
// reconnecting and Run blocks until ctx is canceled; the process
// itself stays alive (no automatic process exit).
func (e *Engine) Run(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if err := e.connectAndServe(ctx); err != nil {
			e.log.Warnw("session ended", "err", err)
		}

		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts > e.cfg.MaxReconnectAttempts {
			e.log.Errorw("reconnect attempts exhausted, remaining alive without a session",
				"attempts", attempts)
			<-ctx.Done()
			return
		}

		e.log.Infow("reconnecting", "attempt", attempts, "delay", e.cfg.ReconnectDelay)
		select {
		case <-time.After(e.cfg.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndServe establishes one TCP connection, logs on, and
// serves it until it drops or ctx is canceled. The cache connection
// is (re-)established in parallel with the socket dial, per the
// reconnect policy.
func (e *Engine) connectAndServe(ctx context.Context) error {
	e.setState(StateConnecting)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.cache.Connect(ctx); err != nil {
			e.log.Warnw("cache connect failed", "err", err)
		}
	}()

	addr := net.JoinHostPort(e.cfg.Server, e.cfg.Port)
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	wg.Wait()
	if err != nil {
		e.setState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	e.mu.Lock()
	e.conn = conn
	e.buf = nil
	e.mu.Unlock()

	defer func() {
		conn.Close()
		e.setState(StateDisconnected)
	}()

	if err := e.logon(); err != nil {
		return err
	}

	return e.readLoop(ctx)
}

// logon resets the outbound sequence to 0, increments it to 1, and
// sends the Logon message. The engine transitions to LoggedOn only on
// receipt of a Logon response, handled in readLoop.
func (e *Engine) logon() error {
	e.mu.Lock()
	e.outboundSeq = 0
	e.outboundSeq++
	seq := e.outboundSeq
	conn := e.conn
	e.mu.Unlock()

	sendingTime := time.Now().UTC().Format(fixcodec.FixTimeFormat)
	frame := fixcodec.BuildLogon(e.cfg.SenderCompID, e.cfg.TargetCompID, seq, sendingTime, e.cfg.Username, e.cfg.Password)
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("send logon: %w", err)
	}
	e.log.Infow("logon sent", "seq", seq)
	return nil
}

// readLoop blocks reading frames off the socket, decoding and routing
// each complete one, until the read errors (socket closed by peer,
// reset, or a logout-triggered local close) or ctx is canceled.
func (e *Engine) readLoop(ctx context.Context) error {
	readBuf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.mu.Lock()
		conn := e.conn
		e.mu.Unlock()

		n, err := conn.Read(readBuf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		e.mu.Lock()
		e.buf = append(e.buf, readBuf[:n]...)
		messages, rest := fixcodec.Decode(e.buf)
		e.buf = rest
		e.mu.Unlock()

		for _, msg := range messages {
			e.handleMessage(ctx, msg)
		}
	}
}

// handleMessage routes one decoded frame by message type, per the
// session engine's dispatch table.
func (e *Engine) handleMessage(ctx context.Context, msg fixcodec.Message) {
	e.log.Debugw("inbound message", "type", msg.MsgType, "seq", msg.Fields[fixcodec.TagMsgSeqNum])
	switch msg.MsgType {
	case fixcodec.MsgTypeMarketDataSnapshot, fixcodec.MsgTypeMarketDataIncremental:
		e.handleMarketData(ctx, msg)
	case fixcodec.MsgTypeLogon:
		e.onLoggedOn(ctx)
	case fixcodec.MsgTypeReject:
		e.log.Warnw("session reject", "reason", msg.Fields[fixcodec.TagText])
	case fixcodec.MsgTypeHeartbeat:
		e.log.Debugw("heartbeat received")
	case fixcodec.MsgTypeLogout:
		e.log.Infow("peer-initiated logout")
		e.mu.Lock()
		conn := e.conn
		e.mu.Unlock()
		conn.Close()
	default:
		e.log.Infow("unhandled message type", "type", msg.MsgType)
	}
}

// onLoggedOn transitions to LoggedOn and schedules subscription
// dispatch after the configured delay (1s per spec). This is a single
// pass: re-subscription only ever happens by full session reconnect.
func (e *Engine) onLoggedOn(ctx context.Context) {
	e.setState(StateLoggedOn)
	e.log.Infow("logged on")
	go func() {
		select {
		case <-time.After(e.cfg.SubscribeDelay):
		case <-ctx.Done():
			return
		}
		if e.State() != StateLoggedOn {
			return
		}
		e.subs.Dispatch(e)
	}()
}

// handleMarketData extracts repeating-group entries with a
// recognized side and a present price, builds a RawQuote for each,
// and submits it to the tick pipeline. Repeating-group entries are
// enqueued in source order within a single frame; ordering into the
// tick queue is not preserved once more than one worker runs.
func (e *Engine) handleMarketData(ctx context.Context, msg fixcodec.Message) {
	symbol := msg.Fields[fixcodec.TagSymbol]
	reqID := msg.Fields[fixcodec.TagMDReqID]

	for _, entry := range msg.Entries {
		side, ok := normalize.SideFromEntryType(entry.EntryType)
		if !ok || entry.Price == "" {
			continue
		}

		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			e.log.Warnw("malformed MDEntryPx", "symbol", symbol, "value", entry.Price, "err", err)
			continue
		}

		var size decimal.Decimal
		if entry.Size != "" {
			size, err = decimal.NewFromString(entry.Size)
			if err != nil {
				e.log.Warnw("malformed MDEntrySize", "symbol", symbol, "value", entry.Size, "err", err)
				continue
			}
		}

		raw := model.RawQuote{
			Symbol: symbol, Side: side, Price: price, Size: size,
			SourceTime: entry.Time, ReqID: reqID,
		}
		if err := e.ticks.Submit(ctx, raw); err != nil {
			e.log.Warnw("tick submit failed", "symbol", symbol, "side", side, "err", err)
		}
	}
}

// SendMarketDataRequest implements subscription.Sender: it assigns
// the next outbound sequence number and writes the encoded request to
// the live socket. It is called from the post-logon subscription
// goroutine; the engine's mutex guards both the sequence counter and
// e.conn.
func (e *Engine) SendMarketDataRequest(symbol, mdReqID string) error {
	e.mu.Lock()
	e.outboundSeq++
	seq := e.outboundSeq
	conn := e.conn
	e.mu.Unlock()

	if conn == nil {
		return errors.New("session: no active connection")
	}
	sendingTime := time.Now().UTC().Format(fixcodec.FixTimeFormat)
	frame := fixcodec.BuildMarketDataRequest(e.cfg.SenderCompID, e.cfg.TargetCompID, seq, sendingTime, mdReqID, symbol)
	_, err := conn.Write(frame)
	return err
}

// Shutdown performs the graceful shutdown sequence: if logged on,
// send a Logout, then half-close the socket (a non-TCP connection is
// closed outright). It does not wait for Run's
// reconnect loop to notice; callers should cancel Run's context
// separately to stop reconnection.
func (e *Engine) Shutdown(context.Context) {
	e.mu.Lock()
	state := e.state
	conn := e.conn
	if conn != nil {
		e.outboundSeq++
	}
	seq := e.outboundSeq
	e.mu.Unlock()

	if state == StateLoggedOn && conn != nil {
		sendingTime := time.Now().UTC().Format(fixcodec.FixTimeFormat)
		frame := fixcodec.BuildLogout(e.cfg.SenderCompID, e.cfg.TargetCompID, seq, sendingTime)
		if _, err := conn.Write(frame); err != nil {
			e.log.Warnw("send logout failed", "err", err)
		}
	}
	e.closeConn()
}

func (e *Engine) closeConn() {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
		return
	}
	conn.Close()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// State reports the engine's current connection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
