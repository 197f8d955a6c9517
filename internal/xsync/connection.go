package xsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/observer"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 30 * time.Second
	DefaultMaxAttempts = 10
	DefaultDialTimeout = 15 * time.Second
)

// FrameHandler consumes raw frames from the live connection.
type FrameHandler interface {
	HandleFrame(data []byte)
}

// ConnectionObserver hears about connection lifecycle edges. Connected runs
// after every transition to CONNECTED; Disconnected only after an explicit
// Disconnect.
type ConnectionObserver interface {
	Connected(conn realtime.Conn)
	Disconnected()
}

// ConnectionManager owns the single push connection and its reconnect loop.
// It is the only writer of ConnectionState.
type ConnectionManager struct {
	dialer      realtime.Dialer
	clock       Clock
	backoff     Backoff
	maxAttempts int
	dialTimeout time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	frames atomic.Pointer[frameSink]
	gen    atomic.Uint64

	mu        sync.Mutex
	state     ConnectionState
	identity  string
	conn      realtime.Conn
	attempt   int
	failures  int
	degraded  bool
	timer     Timer
	disposed  bool
	observers []ConnectionObserver

	stateObservers    observer.Set[ConnectionState]
	degradedObservers observer.Set[bool]
}

type frameSink struct {
	h FrameHandler
}

func NewConnectionManager(dialer realtime.Dialer, opts ...ManagerOption) *ConnectionManager {
	cfg := managerConfig{
		clock:       RealClock(),
		backoff:     Backoff{Base: DefaultBackoffBase, Max: DefaultBackoffMax},
		maxAttempts: DefaultMaxAttempts,
		dialTimeout: DefaultDialTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &ConnectionManager{
		dialer:      dialer,
		clock:       cfg.clock,
		backoff:     cfg.backoff,
		maxAttempts: cfg.maxAttempts,
		dialTimeout: cfg.dialTimeout,
		logger:      cfg.logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	m.stateObservers.SetLogger(cfg.logger)
	m.degradedObservers.SetLogger(cfg.logger)
	return m
}

// SetFrameHandler sets where frames from the live connection go.
func (m *ConnectionManager) SetFrameHandler(h FrameHandler) {
	m.frames.Store(&frameSink{h: h})
}

// AddObserver registers o for lifecycle edges. Observers are called in
// registration order without any manager lock held.
func (m *ConnectionManager) AddObserver(o ConnectionObserver) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

func (m *ConnectionManager) OnStateChange(fn func(ConnectionState)) func() {
	return m.stateObservers.Add(fn)
}

// OnDegraded is called with true once reconnects have failed MaxAttempts
// times in a row, and with false when a connection succeeds again.
func (m *ConnectionManager) OnDegraded(fn func(bool)) func() {
	return m.degradedObservers.Add(fn)
}

func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnectionManager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *ConnectionManager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Conn returns the live connection, if CONNECTED.
func (m *ConnectionManager) Conn() (realtime.Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.conn == nil {
		return nil, false
	}
	return m.conn, true
}

// Connect starts a connection segment for identity. It is a no-op unless the
// manager is DISCONNECTED. The first dial happens on the calling goroutine and
// is bounded by the dial timeout; retries run on the clock.
func (m *ConnectionManager) Connect(identity string) {
	m.mu.Lock()
	if m.disposed || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.identity = identity
	m.attempt = 0
	m.failures = 0
	gen := m.gen.Add(1)
	m.state = StateConnecting
	m.mu.Unlock()

	m.logger.Info("connecting", xslog.Identity(identity))
	m.stateObservers.Notify(StateConnecting)

	m.dial(gen)
}

// Disconnect ends the current segment: pending retries are cancelled, the
// live connection is closed, and observers are told to drop wire state.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.gen.Add(1)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.attempt = 0
	m.failures = 0
	wasDegraded := m.degraded
	m.degraded = false
	m.state = StateDisconnected
	observers := m.observers
	m.mu.Unlock()

	m.logger.Info("disconnected")
	m.stateObservers.Notify(StateDisconnected)
	if wasDegraded {
		m.degradedObservers.Notify(false)
	}
	for _, o := range observers {
		o.Disconnected()
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("failed to close connection", xslog.Error(err))
		}
	}
}

// Dispose disconnects and makes every later Connect a no-op.
func (m *ConnectionManager) Dispose() {
	m.Disconnect()

	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()

	m.cancel()
}

func (m *ConnectionManager) dial(gen uint64) {
	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
	conn, err := m.dialer.Dial(ctx, identity, &connHandler{m: m, gen: gen})
	cancel()

	m.mu.Lock()
	if gen != m.gen.Load() || m.state == StateDisconnected {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		plan := m.scheduleRetryLocked(gen)
		m.mu.Unlock()

		m.logger.Warn("connection failed, reconnecting",
			xslog.Error(err),
			xslog.Attempt(plan.attempt),
			xslog.Backoff(plan.delay),
		)
		m.notifyRetry(plan)
		return
	}

	m.conn = conn
	m.attempt = 0
	m.failures = 0
	wasDegraded := m.degraded
	m.degraded = false
	m.state = StateConnected
	observers := m.observers
	m.mu.Unlock()

	m.logger.Info("connected", xslog.Identity(identity))
	m.stateObservers.Notify(StateConnected)
	if wasDegraded {
		m.degradedObservers.Notify(false)
	}
	for _, o := range observers {
		o.Connected(conn)
	}
}

type retryPlan struct {
	entered     bool
	delay       time.Duration
	attempt     int
	degradedNow bool
}

// scheduleRetryLocked moves to RECONNECTING and arms the retry timer.
func (m *ConnectionManager) scheduleRetryLocked(gen uint64) retryPlan {
	m.attempt++
	m.failures++
	plan := retryPlan{
		entered: m.state != StateReconnecting,
		delay:   m.backoff.Delay(m.attempt),
		attempt: m.attempt,
	}

	if m.maxAttempts > 0 && m.failures >= m.maxAttempts && !m.degraded {
		m.degraded = true
		plan.degradedNow = true
	}

	m.state = StateReconnecting
	m.timer = m.clock.AfterFunc(plan.delay, func() { m.retry(gen) })
	return plan
}

func (m *ConnectionManager) notifyRetry(plan retryPlan) {
	if plan.entered {
		m.stateObservers.Notify(StateReconnecting)
	}
	if plan.degradedNow {
		m.logger.Error("push connection degraded, polling continues", xslog.Attempt(plan.attempt))
		m.degradedObservers.Notify(true)
	}
}

// retry dials again if the timer still belongs to the current attempt. Each
// attempt gets its own generation so a late drop from an older connection
// cannot disturb a newer one.
func (m *ConnectionManager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen.Load() || m.state != StateReconnecting || m.disposed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	next := m.gen.Add(1)
	m.mu.Unlock()

	m.dial(next)
}

func (m *ConnectionManager) handleDrop(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen.Load() || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	plan := m.scheduleRetryLocked(gen)
	m.mu.Unlock()

	if err == nil {
		err = errConnectionDropped
	}
	m.logger.Warn("connection dropped, reconnecting",
		xslog.Error(err),
		xslog.Attempt(plan.attempt),
		xslog.Backoff(plan.delay),
	)
	m.notifyRetry(plan)
}

var errConnectionDropped = errors.New("connection dropped")

// connHandler ties a transport connection to the dial attempt that opened it so
// frames and drops from stale connections are ignored.
type connHandler struct {
	m   *ConnectionManager
	gen uint64
}

var _ realtime.Handler = (*connHandler)(nil)

func (h *connHandler) HandleFrame(data []byte) {
	if h.gen != h.m.gen.Load() {
		return
	}
	if sink := h.m.frames.Load(); sink != nil && sink.h != nil {
		sink.h.HandleFrame(data)
	}
}

func (h *connHandler) HandleClose(err error) {
	h.m.handleDrop(h.gen, err)
}
