package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeNotification(i int) notification.Notification {
	return notification.Notification{
		ID:        fmt.Sprintf("n%d", i),
		Type:      "SYSTEM",
		Title:     fmt.Sprintf("title %d", i),
		Priority:  notification.PriorityNormal,
		CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
	}
}

func ids(ns []notification.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestUpsertOrdersNewestFirstAndBounds(t *testing.T) {
	t.Parallel()

	c := New(3)
	for _, i := range []int{2, 5, 1, 4, 3} {
		c.Upsert(makeNotification(i))
	}

	want := []string{"n5", "n4", "n3"}
	if diff := cmp.Diff(want, ids(c.Recent())); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}

	if kept := c.Upsert(makeNotification(0)); kept {
		t.Errorf("Upsert(older than window) = true, want false")
	}
	if _, ok := c.Get("n0"); ok {
		t.Errorf("Get(n0) found evicted entry")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	t.Parallel()

	c := New(10)
	c.Upsert(makeNotification(1))
	n := makeNotification(1)
	n.IsRead = true
	c.Upsert(n)

	if got := c.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	got, _ := c.Get("n1")
	if !got.IsRead {
		t.Errorf("Get(n1).IsRead = false, want true")
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	c := New(2)
	c.Upsert(makeNotification(9))
	c.Replace([]notification.Notification{makeNotification(1), makeNotification(3), makeNotification(2)})

	want := []string{"n3", "n2"}
	if diff := cmp.Diff(want, ids(c.Recent())); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetReadAndRemove(t *testing.T) {
	t.Parallel()

	c := New(10)
	c.Upsert(makeNotification(1))
	c.Upsert(makeNotification(2))

	prev, ok := c.SetRead("n1", true)
	if !ok || prev {
		t.Errorf("SetRead(n1) = (%v, %v), want (false, true)", prev, ok)
	}
	if _, ok := c.SetRead("missing", true); ok {
		t.Errorf("SetRead(missing) ok = true, want false")
	}
	if diff := cmp.Diff([]string{"n2"}, c.UnreadIDs()); diff != "" {
		t.Errorf("UnreadIDs() mismatch (-want +got):\n%s", diff)
	}

	removed, ok := c.Remove("n2")
	if !ok || removed.ID != "n2" {
		t.Errorf("Remove(n2) = (%v, %v)", removed.ID, ok)
	}
	if _, ok := c.Remove("n2"); ok {
		t.Errorf("second Remove(n2) ok = true, want false")
	}
}

func TestUnreadCountNeverNegative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   int
		deltas  []int
		want    int
		applied []int
	}{
		{name: "decrement to zero", start: 2, deltas: []int{-1, -1}, want: 0, applied: []int{-1, -1}},
		{name: "decrement past zero", start: 1, deltas: []int{-1, -1, -5}, want: 0, applied: []int{-1, 0, 0}},
		{name: "restore after clamp", start: 0, deltas: []int{-3, 2}, want: 2, applied: []int{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(0)
			c.SetUnreadCount(tt.start)
			var applied []int
			for _, d := range tt.deltas {
				applied = append(applied, c.AdjustUnread(d))
			}
			if got := c.UnreadCount(); got != tt.want {
				t.Errorf("UnreadCount() = %d, want %d", got, tt.want)
			}
			if diff := cmp.Diff(tt.applied, applied); diff != "" {
				t.Errorf("AdjustUnread() applied mismatch (-want +got):\n%s", diff)
			}
		})
	}

	c := New(0)
	c.SetUnreadCount(-4)
	if got := c.UnreadCount(); got != 0 {
		t.Errorf("SetUnreadCount(-4) stored %d, want 0", got)
	}
}

func TestOnUnreadChange(t *testing.T) {
	t.Parallel()

	c := New(0)
	var got []int
	unsubscribe := c.OnUnreadChange(func(n int) { got = append(got, n) })

	c.SetUnreadCount(3)
	c.SetUnreadCount(3)
	c.AdjustUnread(-1)
	unsubscribe()
	c.AdjustUnread(-1)

	if diff := cmp.Diff([]int{3, 2}, got); diff != "" {
		t.Errorf("observed counts mismatch (-want +got):\n%s", diff)
	}
}
