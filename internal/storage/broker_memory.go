package storage

import (
	"context"
	"errors"
	"sync"
)

const memoryBrokerBuffer = 64

var ErrBrokerClosed = errors.New("broker closed")

var _ Broker = (*MemoryBroker)(nil)

// MemoryBroker fans events out within a single process. A subscriber that
// falls a full buffer behind misses events; clients recover them by polling.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

type memorySubscription struct {
	ch chan Event
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}

	deliver := func(subs map[*memorySubscription]struct{}) {
		for sub := range subs {
			select {
			case sub.ch <- e:
			default:
			}
		}
	}

	if e.Broadcast() {
		for _, subs := range b.subs {
			deliver(subs)
		}
		return nil
	}
	deliver(b.subs[e.UserID])
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, userID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBrokerClosed
	}

	sub := &memorySubscription{ch: make(chan Event, memoryBrokerBuffer)}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*memorySubscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if _, ok := b.subs[userID][sub]; !ok {
				return
			}
			delete(b.subs[userID], sub)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe, nil
}

// Close ends every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for userID, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, userID)
	}
	return nil
}
