package webhook

import (
	"fmt"

	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/notisync/internal/notification"
)

const (
	EventTypeNotification = "notification"
	EventTypeSystem       = "system"
)

type Event interface {
	webhookEvent()
	GetType() string
}

// NotificationEvent delivers a notification to one user.
type NotificationEvent struct {
	UserID       string
	Notification notification.Notification
}

func (e NotificationEvent) webhookEvent()   {}
func (e NotificationEvent) GetType() string { return EventTypeNotification }

// SystemEvent is broadcast to every connected user.
type SystemEvent struct {
	Message string
}

func (e SystemEvent) webhookEvent()   {}
func (e SystemEvent) GetType() string { return EventTypeSystem }

type rawPayload struct {
	Type         string                     `json:"type"`
	UserID       string                     `json:"userId"`
	Notification *notification.Notification `json:"notification"`
	Message      string                     `json:"message"`
}

// ParseEvent parses a raw webhook payload into a typed event.
// Returns ErrUnknownEventType for unknown types.
func ParseEvent(data []byte) (Event, error) {
	var raw rawPayload
	if err := go_json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse webhook: %w", err)
	}

	switch raw.Type {
	case EventTypeNotification:
		if raw.UserID == "" {
			return nil, fmt.Errorf("%w: missing userId", notification.ErrInvalid)
		}
		if raw.Notification == nil {
			return nil, fmt.Errorf("%w: missing notification", notification.ErrInvalid)
		}
		return NotificationEvent{UserID: raw.UserID, Notification: *raw.Notification}, nil
	case EventTypeSystem:
		return SystemEvent{Message: raw.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.Type)
	}
}
