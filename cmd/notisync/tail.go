package main

import (
	"fmt"
	"os"
	"sync"

	go_json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/xslog"
	"github.com/garrettladley/notisync/internal/xsync"
)

type tailLine struct {
	Topic        notification.Topic         `json:"topic"`
	Notification *notification.Notification `json:"notification,omitempty"`
	UnreadCount  *int                       `json:"unreadCount,omitempty"`
	Message      string                     `json:"message,omitempty"`
	State        string                     `json:"state,omitempty"`
}

func tailCmd() *cobra.Command {
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream notifications as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()

			var mu sync.Mutex
			enc := go_json.NewEncoder(os.Stdout)
			emit := func(line tailLine) {
				mu.Lock()
				defer mu.Unlock()
				if err := enc.Encode(line); err != nil {
					a.logger.WarnContext(ctx, "failed to write line", xslog.Error(err))
				}
			}

			engine.OnNotification(func(n notification.Notification) {
				emit(tailLine{Topic: notification.TopicUserNotification, Notification: &n})
			})
			engine.OnSystemMessage(func(msg string) {
				emit(tailLine{Topic: notification.TopicSystemBroadcast, Message: msg})
			})
			if withCounts {
				engine.OnUnreadCountChange(func(n int) {
					emit(tailLine{Topic: notification.TopicUnreadCount, UnreadCount: &n})
				})
			}
			engine.OnStateChange(func(s xsync.ConnectionState) {
				a.logger.InfoContext(ctx, "connection state changed", xslog.State(s.String()))
			})

			if err := engine.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&withCounts, "counts", false, "also emit unread count changes")
	return cmd
}
