package xsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the time until each armed timer fires, soonest first.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at.Sub(c.now))
		}
	}
	slices.Sort(out)
	return out
}

var errDial = errors.New("dial refused")

type fakeDialer struct {
	mu         sync.Mutex
	failNext   int
	dials      int
	identities []string
	conns      []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, identity string, h realtime.Handler) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	d.identities = append(d.identities, identity)
	if d.failNext > 0 {
		d.failNext--
		return nil, errDial
	}
	c := &fakeConn{h: h}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) fail(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no connection dialed")
	}
	return d.conns[len(d.conns)-1]
}

type fakeConn struct {
	h realtime.Handler

	mu     sync.Mutex
	ops    []string
	closed bool
}

func (c *fakeConn) Subscribe(_ context.Context, topic notification.Topic) error {
	return c.record("sub:" + topic.String())
}

func (c *fakeConn) Unsubscribe(_ context.Context, topic notification.Topic) error {
	return c.record("unsub:" + topic.String())
}

func (c *fakeConn) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return realtime.ErrClosed
	}
	c.ops = append(c.ops, op)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) wireOps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ops)
}

// drop simulates the server going away.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.h.HandleClose(errors.New("connection reset"))
}

func (c *fakeConn) push(t *testing.T, topic notification.Topic, payload any) {
	t.Helper()

	f, err := realtime.MessageFrame(topic, payload)
	if err != nil {
		t.Fatalf("MessageFrame() error = %v", err)
	}
	data, err := realtime.EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	c.h.HandleFrame(data)
}

// fakeServer answers REST calls. Every call blocks on gate when it is set.
type fakeServer struct {
	mu        sync.Mutex
	err       error
	unread    int
	unreadErr error
	recent    []notification.Notification
	calls     []string
	gate      chan struct{}
}

func (s *fakeServer) call(ctx context.Context, name string) error {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	gate := s.gate
	err := s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *fakeServer) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeServer) MarkRead(ctx context.Context, id string) error {
	return s.call(ctx, "read:"+id)
}

func (s *fakeServer) MarkAllRead(ctx context.Context) (int, error) {
	return 0, s.call(ctx, "read-all")
}

func (s *fakeServer) Delete(ctx context.Context, id string) error {
	return s.call(ctx, "delete:"+id)
}

func (s *fakeServer) BatchMarkRead(ctx context.Context, ids []string) (int, error) {
	return len(ids), s.call(ctx, "batch-read")
}

func (s *fakeServer) UnreadCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, s.unreadErr
}

func (s *fakeServer) Recent(_ context.Context, size int) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recent[:min(size, len(s.recent))]), nil
}

func makeNotification(id string, minute int, read bool) notification.Notification {
	return notification.Notification{
		ID:        id,
		Type:      "COMMENT",
		Title:     "title " + id,
		Message:   "message " + id,
		Priority:  notification.PriorityNormal,
		IsRead:    read,
		CreatedAt: epoch.Add(time.Duration(minute) * time.Minute),
	}
}
