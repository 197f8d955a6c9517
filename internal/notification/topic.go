package notification

import (
	"fmt"

	go_json "github.com/goccy/go-json"
)

type Topic string

const (
	TopicUserNotification Topic = "user-notification"
	TopicUnreadCount      Topic = "unread-count"
	TopicReadReceipt      Topic = "read-receipt"
	TopicSystemBroadcast  Topic = "system-broadcast"
)

func Topics() []Topic {
	return []Topic{
		TopicUserNotification,
		TopicUnreadCount,
		TopicReadReceipt,
		TopicSystemBroadcast,
	}
}

func (t Topic) Valid() bool {
	switch t {
	case TopicUserNotification, TopicUnreadCount, TopicReadReceipt, TopicSystemBroadcast:
		return true
	default:
		return false
	}
}

func (t Topic) String() string { return string(t) }

// Decode parses and validates a payload against the schema of its topic.
// The returned value is one of Notification, UnreadCount, ReadReceipt or SystemMessage.
func Decode(topic Topic, payload []byte) (any, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload for topic %s", ErrInvalid, topic)
	}

	switch topic {
	case TopicUserNotification:
		return decode[Notification](payload)
	case TopicUnreadCount:
		return decodeUnreadCount(payload)
	case TopicReadReceipt:
		return decode[ReadReceipt](payload)
	case TopicSystemBroadcast:
		return decode[SystemMessage](payload)
	default:
		return nil, fmt.Errorf("%w: unknown topic %q", ErrInvalid, topic)
	}
}

type validator interface {
	Validate() error
}

func decode[T validator](payload []byte) (any, error) {
	var v T
	if err := go_json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeUnreadCount requires the unreadCount key to be present so that an
// empty object is not mistaken for zero.
func decodeUnreadCount(payload []byte) (any, error) {
	var raw struct {
		UnreadCount *int `json:"unreadCount"`
	}
	if err := go_json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if raw.UnreadCount == nil {
		return nil, fmt.Errorf("%w: missing unreadCount", ErrInvalid)
	}
	u := UnreadCount{UnreadCount: *raw.UnreadCount}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}
