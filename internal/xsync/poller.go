package xsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	DefaultPollFloor   = 30 * time.Second
	DefaultPollCeiling = 120 * time.Second
	DefaultPollTimeout = 10 * time.Second
)

type UnreadFetcher interface {
	UnreadCount(ctx context.Context) (int, error)
}

// PollingState is the poller's schedule. Interval is always within
// [floor, ceiling].
type PollingState struct {
	Interval              time.Duration
	ConsecutiveEmptyPolls int
}

// AdaptivePoller pulls the unread count on an interval that stays at the floor
// while there is unread activity and doubles up to the ceiling while there is
// none. It runs regardless of push connectivity.
type AdaptivePoller struct {
	fetch   UnreadFetcher
	onCount func(int)
	clock   Clock
	backoff Backoff
	timeout time.Duration
	logger  *slog.Logger

	gen atomic.Uint64

	mu      sync.Mutex
	state   PollingState
	running bool
	timer   Timer
	nextAt  time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ ConnectionObserver = (*AdaptivePoller)(nil)

// NewAdaptivePoller builds a stopped poller. onCount receives every count the
// poller fetches; it may be nil.
func NewAdaptivePoller(fetch UnreadFetcher, onCount func(int), opts ...PollerOption) *AdaptivePoller {
	cfg := pollerConfig{
		clock:   RealClock(),
		floor:   DefaultPollFloor,
		ceiling: DefaultPollCeiling,
		timeout: DefaultPollTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.floor <= 0 {
		cfg.floor = DefaultPollFloor
	}
	if cfg.ceiling < cfg.floor {
		cfg.ceiling = cfg.floor
	}
	if onCount == nil {
		onCount = func(int) {}
	}

	return &AdaptivePoller{
		fetch:   fetch,
		onCount: onCount,
		clock:   cfg.clock,
		backoff: Backoff{Base: cfg.floor, Max: cfg.ceiling},
		timeout: cfg.timeout,
		logger:  cfg.logger,
		state:   PollingState{Interval: cfg.floor},
	}
}

// Start polls immediately and then on the adaptive schedule. Starting a
// running poller is a no-op.
func (p *AdaptivePoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.scheduleLocked(p.gen.Add(1), 0)
}

// Stop cancels the pending poll and any poll in flight. Its result, if one
// arrives, is discarded.
func (p *AdaptivePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.gen.Add(1)
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.cancel()
}

func (p *AdaptivePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AdaptivePoller) State() PollingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Observe folds an unread count seen elsewhere, such as a push, into the
// schedule. When the interval shrinks the next poll is brought forward.
func (p *AdaptivePoller) Observe(unread int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.observeLocked(unread)
	if !p.running {
		return
	}
	if due := p.clock.Now().Add(p.state.Interval); due.Before(p.nextAt) {
		p.scheduleLocked(p.gen.Add(1), p.state.Interval)
	}
}

// Reset returns the schedule to the floor.
func (p *AdaptivePoller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PollingState{Interval: p.backoff.Base}
}

func (p *AdaptivePoller) Connected(realtime.Conn) {}

// Disconnected clears schedule drift accumulated during the segment.
func (p *AdaptivePoller) Disconnected() {
	p.Reset()
}

func (p *AdaptivePoller) observeLocked(unread int) {
	if unread > 0 {
		p.state = PollingState{Interval: p.backoff.Base}
		return
	}
	p.state.ConsecutiveEmptyPolls++
	p.state.Interval = p.backoff.Delay(p.state.ConsecutiveEmptyPolls)
}

func (p *AdaptivePoller) scheduleLocked(gen uint64, d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.nextAt = p.clock.Now().Add(d)
	p.timer = p.clock.AfterFunc(d, func() { p.poll(gen) })
}

func (p *AdaptivePoller) poll(gen uint64) {
	p.mu.Lock()
	if gen != p.gen.Load() || !p.running {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	ctx := p.ctx
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	count, err := p.fetch.UnreadCount(ctx)
	cancel()

	p.mu.Lock()
	if gen != p.gen.Load() || !p.running {
		p.mu.Unlock()
		return
	}
	if err != nil {
		interval := p.state.Interval
		p.scheduleLocked(gen, interval)
		p.mu.Unlock()

		p.logger.Warn("unread count poll failed", xslog.Error(err), xslog.Interval(interval))
		return
	}
	p.observeLocked(count)
	interval := p.state.Interval
	p.scheduleLocked(gen, interval)
	p.mu.Unlock()

	p.logger.Debug("polled unread count", xslog.UnreadCount(count), xslog.Interval(interval))
	p.onCount(count)
}
