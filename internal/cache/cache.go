package cache

import (
	"slices"
	"sync"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/observer"
)

const DefaultLimit = 50

// Cache holds the most recent notifications, newest first, and the unread
// count. The count never goes below zero.
type Cache struct {
	mu     sync.RWMutex
	limit  int
	items  []notification.Notification
	unread int

	unreadObservers observer.Set[int]
	changeObservers observer.Set[struct{}]
}

func New(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Cache{limit: limit}
}

func (c *Cache) Limit() int { return c.limit }

// OnUnreadChange registers fn to be called with the new count whenever it changes.
func (c *Cache) OnUnreadChange(fn func(int)) func() {
	return c.unreadObservers.Add(fn)
}

// OnChange registers fn to be called whenever the notification window changes.
func (c *Cache) OnChange(fn func()) func() {
	return c.changeObservers.Add(func(struct{}) { fn() })
}

// Upsert inserts or replaces n, keeping the window ordered and bounded.
// It reports false when n fell outside the window and was not kept.
func (c *Cache) Upsert(n notification.Notification) bool {
	c.mu.Lock()
	kept := c.upsertLocked(n)
	c.mu.Unlock()

	c.changeObservers.Notify(struct{}{})
	return kept
}

func (c *Cache) upsertLocked(n notification.Notification) bool {
	if i := c.indexLocked(n.ID); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}

	pos, _ := slices.BinarySearchFunc(c.items, n, newestFirst)
	c.items = slices.Insert(c.items, pos, n)
	if len(c.items) > c.limit {
		c.items = c.items[:c.limit]
	}
	return pos < c.limit
}

// Replace swaps the whole window for ns.
func (c *Cache) Replace(ns []notification.Notification) {
	c.mu.Lock()
	c.items = c.items[:0]
	for _, n := range ns {
		c.upsertLocked(n)
	}
	c.mu.Unlock()

	c.changeObservers.Notify(struct{}{})
}

func (c *Cache) Get(id string) (notification.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	return notification.Notification{}, false
}

// Recent returns a copy of the window, newest first.
func (c *Cache) Recent() []notification.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Remove deletes id from the window and returns what was there.
func (c *Cache) Remove(id string) (notification.Notification, bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return notification.Notification{}, false
	}
	n := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	c.mu.Unlock()

	c.changeObservers.Notify(struct{}{})
	return n, true
}

// SetRead sets the read flag of id and reports the previous value.
// ok is false when id is not cached.
func (c *Cache) SetRead(id string, read bool) (prev bool, ok bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false, false
	}
	prev = c.items[i].IsRead
	c.items[i].IsRead = read
	c.mu.Unlock()

	if prev != read {
		c.changeObservers.Notify(struct{}{})
	}
	return prev, true
}

// UnreadIDs returns the ids of cached notifications that are not read.
func (c *Cache) UnreadIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for _, n := range c.items {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (c *Cache) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// SetUnreadCount stores n, clamped at zero.
func (c *Cache) SetUnreadCount(n int) {
	c.mu.Lock()
	changed, v := c.setUnreadLocked(n)
	c.mu.Unlock()

	if changed {
		c.unreadObservers.Notify(v)
	}
}

// AdjustUnread adds delta to the unread count, clamped at zero, and returns
// the amount actually applied.
func (c *Cache) AdjustUnread(delta int) int {
	c.mu.Lock()
	before := c.unread
	changed, v := c.setUnreadLocked(before + delta)
	c.mu.Unlock()

	if changed {
		c.unreadObservers.Notify(v)
	}
	return v - before
}

func (c *Cache) setUnreadLocked(n int) (bool, int) {
	n = max(n, 0)
	if n == c.unread {
		return false, n
	}
	c.unread = n
	return true, n
}

func (c *Cache) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(n notification.Notification) bool {
		return n.ID == id
	})
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
