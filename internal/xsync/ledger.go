package xsync

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garrettladley/notisync/internal/cache"
	"github.com/garrettladley/notisync/internal/notification"
)

type MutationKind int

const (
	MutationMarkRead MutationKind = iota
	MutationMarkAllRead
	MutationDelete
	MutationBatchMarkRead
)

func (k MutationKind) String() string {
	switch k {
	case MutationMarkRead:
		return "MARK_READ"
	case MutationMarkAllRead:
		return "MARK_ALL_READ"
	case MutationDelete:
		return "DELETE"
	case MutationBatchMarkRead:
		return "BATCH_MARK_READ"
	default:
		return "UNKNOWN"
	}
}

// PendingMutation is an optimistic change that has been applied to the cache
// but not yet confirmed by the server.
type PendingMutation struct {
	ID        string
	Kind      MutationKind
	TargetIDs []string
	CreatedAt time.Time

	seq     uint64
	changes []change
	// unread is the count delta applied beyond what the per-target changes
	// account for.
	unread int
}

// change records exactly what one mutation did to one target, so a rollback
// can undo those fields and nothing else.
type change struct {
	id string
	// flipped is set when IsRead went from false to true.
	flipped bool
	// removed holds the entry taken out of the window.
	removed *notification.Notification
	// unread is the delta applied to the unread count for this target.
	unread int
	// prevSeq is the touch sequence of the target before this mutation.
	prevSeq uint64
}

// ledger serializes every cache write that can race a pending mutation. Each
// write to a target bumps its touch sequence; a rollback only reverts a
// target whose latest touch is still its own. When a later pending mutation
// touched the target, that mutation inherits the undo instead.
type ledger struct {
	cache *cache.Cache
	clock Clock

	mu      sync.Mutex
	seq     uint64
	touched map[string]uint64
	pending []*PendingMutation
}

func newLedger(c *cache.Cache, clock Clock) *ledger {
	return &ledger{
		cache:   c,
		clock:   clock,
		touched: make(map[string]uint64),
	}
}

func (l *ledger) markRead(kind MutationKind, ids []string) PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.beginLocked(kind, ids)
	for _, id := range ids {
		m.changes = append(m.changes, l.readLocked(m, id))
	}
	return l.snapshotLocked(m)
}

// markAllRead flips every cached unread entry and zeroes the count, which may
// include notifications outside the window.
func (l *ledger) markAllRead() PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.cache.UnreadIDs()
	m := l.beginLocked(MutationMarkAllRead, ids)
	for _, id := range ids {
		c := change{id: id, prevSeq: l.touchLocked(id, m.seq)}
		if prev, ok := l.cache.SetRead(id, true); ok && !prev {
			c.flipped = true
		}
		m.changes = append(m.changes, c)
	}
	m.unread = l.cache.AdjustUnread(-l.cache.UnreadCount())
	return l.snapshotLocked(m)
}

func (l *ledger) remove(id string) PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.beginLocked(MutationDelete, []string{id})
	c := change{id: id, prevSeq: l.touchLocked(id, m.seq)}
	if n, ok := l.cache.Remove(id); ok {
		c.removed = &n
		if !n.IsRead {
			c.unread = l.cache.AdjustUnread(-1)
		}
	}
	m.changes = append(m.changes, c)
	return l.snapshotLocked(m)
}

// commit drops a confirmed mutation. Its effects stay.
func (l *ledger) commit(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.takeLocked(id)
	return ok
}

// rollback undoes the fields a failed mutation changed. Targets touched since
// by something that is no longer pending keep their newer state.
func (l *ledger) rollback(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.takeLocked(id)
	if !ok {
		return false
	}

	for _, c := range m.changes {
		if l.touched[c.id] == m.seq {
			l.revertLocked(c)
			l.touched[c.id] = c.prevSeq
			continue
		}
		if next := l.successorLocked(c.id, m.seq); next != nil {
			next.flipped = next.flipped || c.flipped
			next.unread += c.unread
			next.prevSeq = c.prevSeq
		}
	}
	if m.unread != 0 {
		l.cache.AdjustUnread(-m.unread)
	}
	return true
}

// applyRemoteRead marks id read because another session read it.
func (l *ledger) applyRemoteRead(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.touchLocked(id, l.seq)
	if prev, ok := l.cache.SetRead(id, true); ok && !prev {
		l.cache.AdjustUnread(-1)
	}
}

// applyPush stores a pushed notification. A pushed entry never un-reads one
// the cache already has as read.
func (l *ledger) applyPush(n notification.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.touchLocked(n.ID, l.seq)
	if existing, ok := l.cache.Get(n.ID); ok {
		n.IsRead = n.IsRead || existing.IsRead
	}
	l.cache.Upsert(n)
}

// setUnread stores an authoritative count unless a mutation is pending, in
// which case the count would not yet reflect it.
func (l *ledger) setUnread(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		return false
	}
	l.cache.SetUnreadCount(n)
	return true
}

func (l *ledger) replace(ns []notification.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	for _, n := range ns {
		l.touchLocked(n.ID, l.seq)
	}
	l.cache.Replace(ns)
}

func (l *ledger) pendingMutations() []PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PendingMutation, 0, len(l.pending))
	for _, m := range l.pending {
		out = append(out, l.snapshotLocked(m))
	}
	return out
}

func (l *ledger) beginLocked(kind MutationKind, ids []string) *PendingMutation {
	l.seq++
	m := &PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		TargetIDs: slices.Clone(ids),
		CreatedAt: l.clock.Now(),
		seq:       l.seq,
	}
	l.pending = append(l.pending, m)
	return m
}

func (l *ledger) readLocked(m *PendingMutation, id string) change {
	c := change{id: id, prevSeq: l.touchLocked(id, m.seq)}
	if prev, ok := l.cache.SetRead(id, true); ok && !prev {
		c.flipped = true
		c.unread = l.cache.AdjustUnread(-1)
	}
	return c
}

func (l *ledger) touchLocked(id string, seq uint64) uint64 {
	prev := l.touched[id]
	l.touched[id] = seq
	return prev
}

func (l *ledger) revertLocked(c change) {
	switch {
	case c.removed != nil:
		n := *c.removed
		if c.flipped {
			n.IsRead = false
		}
		l.cache.Upsert(n)
	case c.flipped:
		l.cache.SetRead(c.id, false)
	}
	if c.unread != 0 {
		l.cache.AdjustUnread(-c.unread)
	}
}

// successorLocked finds the pending change that touched id right after seq.
func (l *ledger) successorLocked(id string, seq uint64) *change {
	for _, m := range l.pending {
		for i := range m.changes {
			if m.changes[i].id == id && m.changes[i].prevSeq == seq {
				return &m.changes[i]
			}
		}
	}
	return nil
}

func (l *ledger) takeLocked(id string) (*PendingMutation, bool) {
	i := slices.IndexFunc(l.pending, func(m *PendingMutation) bool { return m.ID == id })
	if i < 0 {
		return nil, false
	}
	m := l.pending[i]
	l.pending = slices.Delete(l.pending, i, i+1)
	return m, true
}

func (l *ledger) snapshotLocked(m *PendingMutation) PendingMutation {
	return PendingMutation{
		ID:        m.ID,
		Kind:      m.Kind,
		TargetIDs: slices.Clone(m.TargetIDs),
		CreatedAt: m.CreatedAt,
	}
}
