package tui

import (
	"context"
	"log/slog"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xsync"
)

// Engine is the part of *xsync.Engine the TUI drives.
type Engine interface {
	Recent() []notification.Notification
	UnreadCount() int
	ConnectionState() xsync.ConnectionState
	Degraded() bool

	OnNotificationsChange(fn func()) func()
	OnUnreadCountChange(fn func(int)) func()
	OnStateChange(fn func(xsync.ConnectionState)) func()
	OnDegraded(fn func(bool)) func()
	OnSystemMessage(fn func(string)) func()
	OnMutationError(fn func(xsync.MutationError)) func()

	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

type Deps struct {
	Ctx    context.Context
	Engine Engine
	Logger *slog.Logger
}
