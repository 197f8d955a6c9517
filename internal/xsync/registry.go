package xsync

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garrettladley/notisync/internal/client/realtime"
	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xslog"
)

const defaultWireTimeout = 5 * time.Second

// Listener receives decoded payloads for a topic: a notification.Notification,
// notification.UnreadCount, notification.ReadReceipt or notification.SystemMessage.
type Listener func(payload any)

// Token identifies one registration. The zero Token is never issued.
type Token struct {
	topic notification.Topic
	id    uint64
}

func (t Token) Topic() notification.Topic { return t.topic }

// connectionControl is the slice of ConnectionManager the registry drives.
type connectionControl interface {
	Connect(identity string)
	Disconnect()
	Conn() (realtime.Conn, bool)
	AddObserver(o ConnectionObserver)
}

type listenerEntry struct {
	id      uint64
	fn      Listener
	removed atomic.Bool
}

// SubscriptionRegistry is the only writer of topic membership. It keeps wire
// subscriptions in step with membership: a topic is subscribed on the
// connection iff it has listeners. Wire changes that cannot be sent while
// the connection is down are replayed on the next CONNECTED.
type SubscriptionRegistry struct {
	conn     connectionControl
	identity string
	timeout  time.Duration
	logger   *slog.Logger

	// opMu orders membership changes with the connect and disconnect they
	// trigger. wireMu orders writes to the connection. Lock order is
	// opMu, wireMu, mu.
	opMu   sync.Mutex
	wireMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	topics map[notification.Topic][]*listenerEntry
	total  int
	// wire holds topics the server has on the latest connection. After a
	// drop it goes stale on purpose: inactive entries become the
	// unsubscribes replayed on reconnect.
	wire map[notification.Topic]bool
}

var _ ConnectionObserver = (*SubscriptionRegistry)(nil)

func NewSubscriptionRegistry(conn connectionControl, identity string, logger *slog.Logger) *SubscriptionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &SubscriptionRegistry{
		conn:     conn,
		identity: identity,
		timeout:  defaultWireTimeout,
		logger:   logger,
		topics:   make(map[notification.Topic][]*listenerEntry),
		wire:     make(map[notification.Topic]bool),
	}
	conn.AddObserver(r)
	return r
}

// Subscribe registers fn for topic. The first listener overall opens the
// connection; the first listener of a topic subscribes it on the wire, now
// or on the next CONNECTED.
func (r *SubscriptionRegistry) Subscribe(topic notification.Topic, fn Listener) Token {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	r.nextID++
	entry := &listenerEntry{id: r.nextID, fn: fn}
	r.topics[topic] = append(r.topics[topic], entry)
	r.total++
	firstOverall := r.total == 1
	firstForTopic := len(r.topics[topic]) == 1
	r.mu.Unlock()

	if firstOverall {
		r.conn.Connect(r.identity)
	}
	if firstForTopic {
		r.sync()
	}

	return Token{topic: topic, id: entry.id}
}

// Unsubscribe removes the registration behind t. Delivery to it stops at
// once, even mid-dispatch. Removing the last listener of a topic
// unsubscribes it on the wire; removing the last listener overall ends the
// connection. Unknown or repeated tokens are ignored.
func (r *SubscriptionRegistry) Unsubscribe(t Token) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	entries := r.topics[t.topic]
	i := slices.IndexFunc(entries, func(e *listenerEntry) bool { return e.id == t.id })
	if i < 0 {
		r.mu.Unlock()
		return
	}
	entries[i].removed.Store(true)
	entries = slices.Delete(slices.Clone(entries), i, i+1)
	lastForTopic := len(entries) == 0
	if lastForTopic {
		delete(r.topics, t.topic)
	} else {
		r.topics[t.topic] = entries
	}
	r.total--
	lastOverall := r.total == 0
	r.mu.Unlock()

	if lastForTopic {
		r.sync()
	}
	if lastOverall {
		r.conn.Disconnect()
	}
}

// Active reports whether topic has at least one listener.
func (r *SubscriptionRegistry) Active(topic notification.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic]) > 0
}

// WireTopics returns the topics subscribed on the current connection.
func (r *SubscriptionRegistry) WireTopics() []notification.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]notification.Topic, 0, len(r.wire))
	for t := range r.wire {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

// listeners returns the registrations for topic in registration order.
// The slice must not be modified.
func (r *SubscriptionRegistry) listeners(topic notification.Topic) []*listenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics[topic]
}

// Connected replays queued unsubscribes and re-subscribes every active topic
// on the new connection.
func (r *SubscriptionRegistry) Connected(conn realtime.Conn) {
	r.wireMu.Lock()
	defer r.wireMu.Unlock()

	r.mu.Lock()
	var stale []notification.Topic
	for t := range r.wire {
		if len(r.topics[t]) == 0 {
			stale = append(stale, t)
		}
	}
	clear(r.wire)
	active := r.activeLocked()
	r.mu.Unlock()

	slices.Sort(stale)
	for _, t := range stale {
		r.unsubscribeWire(conn, t)
	}
	for _, t := range active {
		r.subscribeWire(conn, t)
	}
}

// Disconnected forgets all wire state; the connection it belonged to is gone.
func (r *SubscriptionRegistry) Disconnected() {
	r.wireMu.Lock()
	defer r.wireMu.Unlock()

	r.mu.Lock()
	clear(r.wire)
	r.mu.Unlock()
}

// sync brings the wire in line with membership if a connection is up.
func (r *SubscriptionRegistry) sync() {
	r.wireMu.Lock()
	defer r.wireMu.Unlock()

	conn, ok := r.conn.Conn()
	if !ok {
		return
	}

	r.mu.Lock()
	var toUnsubscribe, toSubscribe []notification.Topic
	for t := range r.wire {
		if len(r.topics[t]) == 0 {
			toUnsubscribe = append(toUnsubscribe, t)
		}
	}
	for _, t := range r.activeLocked() {
		if !r.wire[t] {
			toSubscribe = append(toSubscribe, t)
		}
	}
	r.mu.Unlock()

	slices.Sort(toUnsubscribe)
	for _, t := range toUnsubscribe {
		r.unsubscribeWire(conn, t)
	}
	for _, t := range toSubscribe {
		r.subscribeWire(conn, t)
	}
}

func (r *SubscriptionRegistry) subscribeWire(conn realtime.Conn, topic notification.Topic) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := conn.Subscribe(ctx, topic); err != nil {
		// a failed write means the connection is going away; the topic is
		// subscribed again on the next CONNECTED
		r.logger.Warn("failed to subscribe topic", xslog.Topic(topic.String()), xslog.Error(err))
		return
	}

	r.mu.Lock()
	r.wire[topic] = true
	r.mu.Unlock()
}

func (r *SubscriptionRegistry) unsubscribeWire(conn realtime.Conn, topic notification.Topic) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := conn.Unsubscribe(ctx, topic); err != nil {
		r.logger.Warn("failed to unsubscribe topic", xslog.Topic(topic.String()), xslog.Error(err))
		return
	}

	r.mu.Lock()
	delete(r.wire, topic)
	r.mu.Unlock()
}

func (r *SubscriptionRegistry) activeLocked() []notification.Topic {
	topics := make([]notification.Topic, 0, len(r.topics))
	for t, entries := range r.topics {
		if len(entries) > 0 {
			topics = append(topics, t)
		}
	}
	slices.Sort(topics)
	return topics
}
