package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xsync"
)

type fakeEngine struct {
	mu       sync.Mutex
	items    []notification.Notification
	state    xsync.ConnectionState
	calls    []string
	onChange []func()
	onSystem []func(string)
	onFail   []func(xsync.MutationError)
}

var _ Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Recent() []notification.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification.Notification(nil), f.items...)
}

func (f *fakeEngine) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, it := range f.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

func (f *fakeEngine) ConnectionState() xsync.ConnectionState { return f.state }
func (f *fakeEngine) Degraded() bool                         { return false }

func (f *fakeEngine) OnNotificationsChange(fn func()) func() {
	f.onChange = append(f.onChange, fn)
	return func() {}
}
func (f *fakeEngine) OnUnreadCountChange(func(int)) func()               { return func() {} }
func (f *fakeEngine) OnStateChange(func(xsync.ConnectionState)) func()   { return func() {} }
func (f *fakeEngine) OnDegraded(func(bool)) func()                       { return func() {} }
func (f *fakeEngine) OnSystemMessage(fn func(string)) func()             { f.onSystem = append(f.onSystem, fn); return func() {} }
func (f *fakeEngine) OnMutationError(fn func(xsync.MutationError)) func() { f.onFail = append(f.onFail, fn); return func() {} }

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) MarkRead(_ context.Context, id string) error {
	f.record("read:" + id)
	return nil
}

func (f *fakeEngine) MarkAllRead(context.Context) error {
	f.record("read-all")
	return nil
}

func (f *fakeEngine) DeleteNotification(_ context.Context, id string) error {
	f.record("delete:" + id)
	return nil
}

func item(id string, read bool) notification.Notification {
	return notification.Notification{
		ID:        id,
		Type:      "comment",
		Title:     "title " + id,
		Priority:  notification.PriorityNormal,
		IsRead:    read,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func key(s string) tea.KeyPressMsg {
	switch s {
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	default:
		r := []rune(s)[0]
		return tea.KeyPressMsg{Code: r, Text: s}
	}
}

func run(m *Model, msg tea.Msg) {
	_, cmd := m.Update(msg)
	if cmd == nil {
		return
	}
	if _, ok := msg.(tea.KeyPressMsg); ok {
		// key commands are engine mutations; run them inline
		m.Update(cmd())
	}
}

func newTestModel(e *fakeEngine) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(Deps{Ctx: ctx, Engine: e})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.Update(refreshMsg{})
	return &m
}

func TestModel_Keys(t *testing.T) {
	t.Parallel()

	e := &fakeEngine{
		items: []notification.Notification{item("a", false), item("b", true), item("c", false)},
		state: xsync.StateConnected,
	}
	m := newTestModel(e)

	if m.unread != 2 {
		t.Fatalf("unread = %d, want 2", m.unread)
	}

	run(m, key("r"))
	run(m, key("down"))
	run(m, key("r")) // already read
	run(m, key("down"))
	run(m, key("down")) // clamped at the end
	run(m, key("d"))
	run(m, key("a"))
	run(m, key("up"))
	run(m, key("up"))
	run(m, key("up"))
	run(m, key("d"))

	want := []string{"read:a", "delete:c", "read-all", "delete:a"}
	if diff := cmp.Diff(want, e.calls); diff != "" {
		t.Errorf("engine calls mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_RefreshClampsCursor(t *testing.T) {
	t.Parallel()

	e := &fakeEngine{items: []notification.Notification{item("a", false), item("b", false)}}
	m := newTestModel(e)
	run(m, key("down"))

	e.mu.Lock()
	e.items = e.items[:1]
	e.mu.Unlock()
	for _, fn := range e.onChange {
		fn()
	}
	m.Update(<-m.bridge.events)

	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
	if got, _ := m.selected(); got.ID != "a" {
		t.Errorf("selected = %q, want a", got.ID)
	}
}

func TestModel_SystemAndFailure(t *testing.T) {
	t.Parallel()

	e := &fakeEngine{items: []notification.Notification{item("a", false)}}
	m := newTestModel(e)

	for _, fn := range e.onSystem {
		fn("maintenance at 10")
	}
	for _, fn := range e.onFail {
		fn(xsync.MutationError{Kind: xsync.MutationMarkRead, TargetIDs: []string{"a"}, Err: errors.New("boom")})
	}
	m.Update(<-m.bridge.events)
	m.Update(<-m.bridge.events)

	if m.banner != "maintenance at 10" {
		t.Errorf("banner = %q", m.banner)
	}
	if m.errorMsg != "MARK_READ failed, changes reverted" {
		t.Errorf("errorMsg = %q", m.errorMsg)
	}

	_ = m.View()
	if !strings.Contains(m.headerView(), "1 unread") {
		t.Errorf("header = %q, want unread badge", m.headerView())
	}
}
