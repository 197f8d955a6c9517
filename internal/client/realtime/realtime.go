package realtime

import (
	"context"

	"github.com/garrettladley/notisync/internal/notification"
)

// Handler receives everything the server sends on a connection.
type Handler interface {
	// HandleFrame is called from a single goroutine, in receive order.
	HandleFrame(data []byte)
	// HandleClose is called once when the connection drops on its own. It is
	// not called after Conn.Close.
	HandleClose(err error)
}

type Dialer interface {
	Dial(ctx context.Context, identity string, h Handler) (Conn, error)
}

type Conn interface {
	Subscribe(ctx context.Context, topic notification.Topic) error
	Unsubscribe(ctx context.Context, topic notification.Topic) error
	Close() error
}
