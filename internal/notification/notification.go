package notification

import (
	"errors"
	"fmt"
	"time"
)

type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

var ErrInvalid = errors.New("invalid notification")

// Notification is immutable except for IsRead.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	IsRead    bool      `json:"isRead"`
	ActionURL string    `json:"actionUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n Notification) Validate() error {
	switch {
	case n.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case n.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalid)
	case n.Title == "":
		return fmt.Errorf("%w: missing title", ErrInvalid)
	case !n.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, n.Priority)
	case n.CreatedAt.IsZero():
		return fmt.Errorf("%w: missing createdAt", ErrInvalid)
	}
	return nil
}

type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}

func (u UnreadCount) Validate() error {
	if u.UnreadCount < 0 {
		return fmt.Errorf("%w: negative unread count %d", ErrInvalid, u.UnreadCount)
	}
	return nil
}

// ReadReceipt tells other sessions that a notification was read elsewhere.
type ReadReceipt struct {
	NotificationID string `json:"notificationId"`
}

func (r ReadReceipt) Validate() error {
	if r.NotificationID == "" {
		return fmt.Errorf("%w: missing notificationId", ErrInvalid)
	}
	return nil
}

type SystemMessage struct {
	Message string `json:"message"`
}

func (s SystemMessage) Validate() error {
	if s.Message == "" {
		return fmt.Errorf("%w: empty system message", ErrInvalid)
	}
	return nil
}

type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByType     map[string]int   `json:"byType"`
	ByPriority map[Priority]int `json:"byPriority"`
}

type Page struct {
	Content       []Notification `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int            `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}
