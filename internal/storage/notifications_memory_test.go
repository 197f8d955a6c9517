package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/garrettladley/notisync/internal/notification"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func makeNotification(id string, minute int, read bool) notification.Notification {
	return notification.Notification{
		ID:        id,
		Type:      "comment",
		Title:     "title " + id,
		Message:   "message " + id,
		Priority:  notification.PriorityNormal,
		IsRead:    read,
		CreatedAt: epoch.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(ns []notification.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func seed(t *testing.T, s *MemoryNotificationStore, userID string, ns ...notification.Notification) {
	t.Helper()
	for _, n := range ns {
		if _, err := s.Insert(context.Background(), userID, n); err != nil {
			t.Fatalf("Insert(%s) error = %v", n.ID, err)
		}
	}
}

func TestMemoryNotificationStore_OrdersNewestFirst(t *testing.T) {
	t.Parallel()

	s := NewMemoryNotificationStore()
	seed(t, s, "u1",
		makeNotification("b", 1, false),
		makeNotification("d", 3, false),
		makeNotification("a", 1, false),
		makeNotification("c", 2, true),
	)

	got, err := s.Recent(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if diff := cmp.Diff([]string{"d", "c", "a", "b"}, ids(got)); diff != "" {
		t.Errorf("Recent() order mismatch (-want +got):\n%s", diff)
	}

	got, err = s.Recent(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if diff := cmp.Diff([]string{"d", "c"}, ids(got)); diff != "" {
		t.Errorf("Recent(2) mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryNotificationStore_InsertDuplicate(t *testing.T) {
	t.Parallel()

	s := NewMemoryNotificationStore()
	seed(t, s, "u1", makeNotification("a", 1, false))

	inserted, err := s.Insert(context.Background(), "u1", makeNotification("a", 5, true))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted {
		t.Error("Insert() of duplicate id = true, want false")
	}

	count, _ := s.UnreadCount(context.Background(), "u1")
	if count != 1 {
		t.Errorf("UnreadCount() = %d, want 1", count)
	}
}

func TestMemoryNotificationStore_List(t *testing.T) {
	t.Parallel()

	s := NewMemoryNotificationStore()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		seed(t, s, "u1", makeNotification(id, i, false))
	}

	tests := []struct {
		name      string
		page      int
		size      int
		wantIDs   []string
		wantPages int
	}{
		{name: "first page", page: 0, size: 2, wantIDs: []string{"e", "d"}, wantPages: 3},
		{name: "last partial page", page: 2, size: 2, wantIDs: []string{"a"}, wantPages: 3},
		{name: "past the end", page: 5, size: 2, wantIDs: []string{}, wantPages: 3},
		{name: "everything", page: 0, size: 20, wantIDs: []string{"e", "d", "c", "b", "a"}, wantPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.List(context.Background(), "u1", tt.page, tt.size)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantIDs, ids(got.Content)); diff != "" {
				t.Errorf("List() content mismatch (-want +got):\n%s", diff)
			}
			if got.TotalElements != 5 {
				t.Errorf("TotalElements = %d, want 5", got.TotalElements)
			}
			if got.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", got.TotalPages, tt.wantPages)
			}
		})
	}
}

func TestMemoryNotificationStore_ReadAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryNotificationStore()
	seed(t, s, "u1",
		makeNotification("a", 1, false),
		makeNotification("b", 2, false),
		makeNotification("c", 3, true),
		makeNotification("d", 4, false),
	)
	seed(t, s, "u2", makeNotification("x", 1, false))

	changed, err := s.MarkRead(ctx, "u1", "a")
	if err != nil || !changed {
		t.Fatalf("MarkRead(a) = %v, %v, want true, nil", changed, err)
	}
	changed, err = s.MarkRead(ctx, "u1", "a")
	if err != nil || changed {
		t.Fatalf("second MarkRead(a) = %v, %v, want false, nil", changed, err)
	}
	if _, err := s.MarkRead(ctx, "u1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkRead of another user's notification error = %v, want ErrNotFound", err)
	}

	batch, err := s.MarkReadBatch(ctx, "u1", []string{"b", "c", "missing"})
	if err != nil {
		t.Fatalf("MarkReadBatch() error = %v", err)
	}
	if diff := cmp.Diff([]string{"b"}, batch); diff != "" {
		t.Errorf("MarkReadBatch() mismatch (-want +got):\n%s", diff)
	}

	removed, err := s.Delete(ctx, "u1", "d")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed.ID != "d" || removed.IsRead {
		t.Errorf("Delete() = %+v, want unread d", removed)
	}
	if _, err := s.Delete(ctx, "u1", "d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	count, _ := s.UnreadCount(ctx, "u1")
	if count != 0 {
		t.Errorf("UnreadCount(u1) = %d, want 0", count)
	}
	count, _ = s.UnreadCount(ctx, "u2")
	if count != 1 {
		t.Errorf("UnreadCount(u2) = %d, want 1", count)
	}
}

func TestMemoryNotificationStore_MarkAllReadAndStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryNotificationStore()
	urgent := makeNotification("c", 3, false)
	urgent.Type = "security"
	urgent.Priority = notification.PriorityUrgent
	seed(t, s, "u1",
		makeNotification("a", 1, false),
		makeNotification("b", 2, true),
		urgent,
	)

	stats, err := s.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := notification.Stats{
		Total:      3,
		Unread:     2,
		ByType:     map[string]int{"comment": 2, "security": 1},
		ByPriority: map[notification.Priority]int{notification.PriorityNormal: 2, notification.PriorityUrgent: 1},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}

	updated, err := s.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("MarkAllRead() = %d, want 2", updated)
	}
	updated, _ = s.MarkAllRead(ctx, "u1")
	if updated != 0 {
		t.Errorf("second MarkAllRead() = %d, want 0", updated)
	}
}
