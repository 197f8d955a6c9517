package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/garrettladley/notisync/internal/notification"
)

var _ NotificationStore = (*MemoryNotificationStore)(nil)

type MemoryNotificationStore struct {
	mu     sync.RWMutex
	byUser map[string][]notification.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{byUser: make(map[string][]notification.Notification)}
}

func (s *MemoryNotificationStore) Insert(_ context.Context, userID string, n notification.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.byUser[userID]
	if slices.ContainsFunc(ns, func(e notification.Notification) bool { return e.ID == n.ID }) {
		return false, nil
	}
	pos, _ := slices.BinarySearchFunc(ns, n, newestFirst)
	s.byUser[userID] = slices.Insert(ns, pos, n)
	return true, nil
}

func (s *MemoryNotificationStore) List(_ context.Context, userID string, page int, size int) (notification.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.byUser[userID], page, size), nil
}

func (s *MemoryNotificationStore) Recent(_ context.Context, userID string, size int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.byUser[userID]
	if size <= 0 {
		return []notification.Notification{}, nil
	}
	return slices.Clone(ns[:min(size, len(ns))]), nil
}

func (s *MemoryNotificationStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, n := range s.byUser[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, userID string, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.byUser[userID]
	i := indexOf(ns, id)
	if i < 0 {
		return false, ErrNotFound
	}
	if ns[i].IsRead {
		return false, nil
	}
	ns[i].IsRead = true
	return true, nil
}

func (s *MemoryNotificationStore) MarkReadBatch(_ context.Context, userID string, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.byUser[userID]
	changed := []string{}
	for _, id := range ids {
		if i := indexOf(ns, id); i >= 0 && !ns[i].IsRead {
			ns[i].IsRead = true
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func (s *MemoryNotificationStore) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.byUser[userID]
	var updated int
	for i := range ns {
		if !ns[i].IsRead {
			ns[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryNotificationStore) Delete(_ context.Context, userID string, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.byUser[userID]
	i := indexOf(ns, id)
	if i < 0 {
		return notification.Notification{}, ErrNotFound
	}
	n := ns[i]
	s.byUser[userID] = slices.Delete(ns, i, i+1)
	return n, nil
}

func (s *MemoryNotificationStore) Stats(_ context.Context, userID string) (notification.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := notification.Stats{
		ByType:     make(map[string]int),
		ByPriority: make(map[notification.Priority]int),
	}
	for _, n := range s.byUser[userID] {
		stats.Total++
		if !n.IsRead {
			stats.Unread++
		}
		stats.ByType[n.Type]++
		stats.ByPriority[n.Priority]++
	}
	return stats, nil
}

func (s *MemoryNotificationStore) Ping(context.Context) error { return nil }

func indexOf(ns []notification.Notification, id string) int {
	return slices.IndexFunc(ns, func(n notification.Notification) bool { return n.ID == id })
}

func newestFirst(a, b notification.Notification) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
