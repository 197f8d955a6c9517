package xsync

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestDispatchFanOutSurvivesPanic(t *testing.T) {
	t.Parallel()

	r, _, dialer, _ := newTestRegistry(t)
	var log callLog
	r.Subscribe(notification.TopicSystemBroadcast, func(p any) {
		log.add("first:" + p.(notification.SystemMessage).Message)
	})
	r.Subscribe(notification.TopicSystemBroadcast, func(any) {
		panic("listener bug")
	})
	r.Subscribe(notification.TopicSystemBroadcast, func(p any) {
		log.add("third:" + p.(notification.SystemMessage).Message)
	})

	conn := dialer.last(t)
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "one"})
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "two"})

	want := []string{"first:one", "third:one", "first:two", "third:two"}
	if diff := cmp.Diff(want, log.get()); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchRoutesByTopic(t *testing.T) {
	t.Parallel()

	r, _, dialer, _ := newTestRegistry(t)
	var got []any
	r.Subscribe(notification.TopicUnreadCount, func(p any) { got = append(got, p) })
	r.Subscribe(notification.TopicReadReceipt, func(p any) { got = append(got, p) })

	conn := dialer.last(t)
	conn.push(t, notification.TopicReadReceipt, notification.ReadReceipt{NotificationID: "n1"})
	conn.push(t, notification.TopicUnreadCount, notification.UnreadCount{UnreadCount: 4})
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "nobody listens"})

	want := []any{
		notification.ReadReceipt{NotificationID: "n1"},
		notification.UnreadCount{UnreadCount: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchDropsInvalidFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `{"type":`},
		{name: "unknown type", frame: `{"type":"shout","topic":"unread-count","payload":{"unreadCount":1}}`},
		{name: "unknown topic", frame: `{"type":"message","topic":"weather","payload":{"unreadCount":1}}`},
		{name: "missing payload", frame: `{"type":"message","topic":"unread-count"}`},
		{name: "negative count", frame: `{"type":"message","topic":"unread-count","payload":{"unreadCount":-1}}`},
		{name: "count missing", frame: `{"type":"message","topic":"unread-count","payload":{}}`},
		{name: "count wrong type", frame: `{"type":"message","topic":"unread-count","payload":{"unreadCount":"3"}}`},
		{name: "notification bad priority", frame: `{"type":"message","topic":"user-notification","payload":{"id":"n1","type":"X","title":"t","priority":"LOW","createdAt":"2025-01-01T00:00:00Z"}}`},
		{name: "empty receipt", frame: `{"type":"message","topic":"read-receipt","payload":{"notificationId":""}}`},
		{name: "server error", frame: `{"type":"error","message":"bad topic"}`},
		{name: "pong", frame: `{"type":"pong"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, m, _, _ := newTestRegistry(t)
			var calls int
			for _, topic := range notification.Topics() {
				r.Subscribe(topic, func(any) { calls++ })
			}

			d := NewMessageDispatcher(r, discardLogger())
			d.HandleFrame([]byte(tt.frame))

			if calls != 0 {
				t.Errorf("listeners called %d times for %s", calls, tt.frame)
			}
			if !m.IsConnected() {
				t.Errorf("invalid frame changed state to %v", m.State())
			}
		})
	}
}

func TestUnsubscribeDuringDispatchStopsDelivery(t *testing.T) {
	t.Parallel()

	r, _, dialer, _ := newTestRegistry(t)
	var log callLog
	var second Token
	r.Subscribe(notification.TopicSystemBroadcast, func(any) {
		log.add("first")
		r.Unsubscribe(second)
	})
	second = r.Subscribe(notification.TopicSystemBroadcast, func(any) {
		log.add("second")
	})

	conn := dialer.last(t)
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "hi"})
	conn.push(t, notification.TopicSystemBroadcast, notification.SystemMessage{Message: "again"})

	if diff := cmp.Diff([]string{"first", "first"}, log.get()); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}
