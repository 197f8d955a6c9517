package xsync

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
)

func newTestEngine(t *testing.T, server *fakeServer) (*Engine, *fakeDialer, *fakeClock) {
	t.Helper()

	dialer := &fakeDialer{}
	clock := newFakeClock()
	e := New(dialer, server,
		WithClock(clock),
		WithLogger(discardLogger()),
		WithIdentity("session-1"),
		WithCacheSize(5),
	)
	t.Cleanup(e.Close)
	return e, dialer, clock
}

func TestEngineStart(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		unread: 2,
		recent: []notification.Notification{
			makeNotification("b", 2, false),
			makeNotification("a", 1, true),
		},
	}
	e, dialer, clock := newTestEngine(t, server)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := e.ConnectionState(); got != StateConnected {
		t.Errorf("ConnectionState() = %v, want %v", got, StateConnected)
	}
	if got := e.UnreadCount(); got != 2 {
		t.Errorf("UnreadCount() = %d, want 2", got)
	}
	if diff := cmp.Diff(server.recent, e.Recent()); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}

	wantOps := []string{
		"sub:user-notification",
		"sub:unread-count",
		"sub:read-receipt",
		"sub:system-broadcast",
	}
	if diff := cmp.Diff(wantOps, dialer.last(t).wireOps()); diff != "" {
		t.Errorf("wire ops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"session-1"}, dialer.identities); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}

	// polling runs alongside push
	if pending := clock.Pending(); len(pending) != 1 || pending[0] != 0 {
		t.Errorf("Pending() = %v, want an immediate poll", pending)
	}
}

func TestEnginePushDelivery(t *testing.T) {
	t.Parallel()

	server := &fakeServer{recent: []notification.Notification{makeNotification("a", 1, false)}}
	e, dialer, _ := newTestEngine(t, server)

	var (
		mu      sync.Mutex
		pushed  []string
		counts  []int
		systems []string
	)
	e.OnNotification(func(n notification.Notification) {
		mu.Lock()
		pushed = append(pushed, n.ID)
		mu.Unlock()
	})
	e.OnUnreadCountChange(func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})
	e.OnSystemMessage(func(m string) {
		mu.Lock()
		systems = append(systems, m)
		mu.Unlock()
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	conn := dialer.last(t)

	conn.push(t, notification.TopicUserNotification, makeNotification("b", 2, false))
	conn.push(t, notification.TopicUnreadCount, notification.UnreadCount{UnreadCount: 2})
	conn.push(t, notification.TopicReadReceipt, notification.ReadReceipt{NotificationID: "a"})
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "maintenance at noon"})

	var ids []string
	read := make(map[string]bool)
	for _, n := range e.Recent() {
		ids = append(ids, n.ID)
		read[n.ID] = n.IsRead
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids); diff != "" {
		t.Errorf("Recent() ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]bool{"a": true, "b": false}, read); diff != "" {
		t.Errorf("read flags mismatch (-want +got):\n%s", diff)
	}
	if got := e.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount() = %d, want 1", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"b"}, pushed); diff != "" {
		t.Errorf("pushed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 1}, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"maintenance at noon"}, systems); diff != "" {
		t.Errorf("system messages mismatch (-want +got):\n%s", diff)
	}
}

func TestEnginePushedCountFeedsPoller(t *testing.T) {
	t.Parallel()

	e, dialer, clock := newTestEngine(t, &fakeServer{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock.Advance(0)
	if got := e.PollingState().ConsecutiveEmptyPolls; got != 1 {
		t.Fatalf("ConsecutiveEmptyPolls = %d, want 1", got)
	}

	dialer.last(t).push(t, notification.TopicUnreadCount, notification.UnreadCount{UnreadCount: 3})
	if diff := cmp.Diff(PollingState{Interval: DefaultPollFloor}, e.PollingState()); diff != "" {
		t.Errorf("PollingState() mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineClose(t *testing.T) {
	t.Parallel()

	e, dialer, clock := newTestEngine(t, &fakeServer{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	conn := dialer.last(t)

	var states []ConnectionState
	e.OnStateChange(func(s ConnectionState) { states = append(states, s) })

	e.Close()
	e.Close()

	if !conn.isClosed() {
		t.Errorf("connection left open after Close")
	}
	if diff := cmp.Diff([]ConnectionState{StateDisconnected}, states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if pending := clock.Pending(); len(pending) != 0 {
		t.Errorf("timers left after Close: %v", pending)
	}
	if err := e.MarkRead(context.Background(), "x"); err == nil {
		t.Errorf("MarkRead() after Close succeeded")
	}
}
