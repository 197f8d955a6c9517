package storage

import (
	"context"
	"errors"
	"time"

	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/notisync/internal/notification"
)

var ErrNotFound = errors.New("notification not found")

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

type Backend interface {
	RateLimiter

	Close() error

	Ping(ctx context.Context) error
}

// NotificationStore persists notifications per user. Lists are ordered newest
// first by createdAt, then by id.
type NotificationStore interface {
	// Insert stores n for userID. It reports false without error when a
	// notification with the same id already exists.
	Insert(ctx context.Context, userID string, n notification.Notification) (bool, error)

	List(ctx context.Context, userID string, page int, size int) (notification.Page, error)

	Recent(ctx context.Context, userID string, size int) ([]notification.Notification, error)

	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead reports whether the notification changed. Returns ErrNotFound
	// if userID has no notification with that id.
	MarkRead(ctx context.Context, userID string, id string) (bool, error)

	// MarkReadBatch marks every listed notification read and returns the ids
	// that changed. Unknown ids are ignored.
	MarkReadBatch(ctx context.Context, userID string, ids []string) ([]string, error)

	MarkAllRead(ctx context.Context, userID string) (int, error)

	// Delete removes and returns the notification. Returns ErrNotFound if
	// userID has no notification with that id.
	Delete(ctx context.Context, userID string, id string) (notification.Notification, error)

	Stats(ctx context.Context, userID string) (notification.Stats, error)

	Ping(ctx context.Context) error
}

// Event is a live update for the push hub.
type Event struct {
	UserID  string             `json:"userId,omitempty"`
	Topic   notification.Topic `json:"topic"`
	Payload go_json.RawMessage `json:"payload"`
}

// NewEvent encodes payload for topic. An empty userID addresses every user.
func NewEvent(userID string, topic notification.Topic, payload any) (Event, error) {
	data, err := go_json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{UserID: userID, Topic: topic, Payload: data}, nil
}

// Broadcast reports whether e is addressed to every user.
func (e Event) Broadcast() bool { return e.UserID == "" }

// Broker fans live events out to the push connections of a user, on this
// replica and any other.
type Broker interface {
	Publish(ctx context.Context, e Event) error

	// Subscribe returns a channel that receives the events for userID and
	// every broadcast. The returned function should be called to unsubscribe.
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)

	Close() error
}

func paginate(ns []notification.Notification, page int, size int) notification.Page {
	total := len(ns)
	p := notification.Page{
		Content:       []notification.Notification{},
		Page:          page,
		Size:          size,
		TotalElements: total,
	}
	if size > 0 {
		p.TotalPages = (total + size - 1) / size
	}

	start := page * size
	if start >= total {
		return p
	}
	end := min(start+size, total)
	p.Content = append(p.Content, ns[start:end]...)
	return p
}
