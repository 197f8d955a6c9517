package tui

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/garrettladley/notisync/internal/xsync"
)

const bridgeBuffer = 64

// Bridge turns engine callbacks, which fire on engine goroutines, into
// messages for bubbletea's loop.
type Bridge struct {
	events chan tea.Msg
	unsubs []func()
}

func NewBridge(e Engine) *Bridge {
	b := &Bridge{events: make(chan tea.Msg, bridgeBuffer)}
	refresh := func() { b.send(refreshMsg{}) }

	b.unsubs = append(b.unsubs,
		e.OnNotificationsChange(refresh),
		e.OnUnreadCountChange(func(int) { refresh() }),
		e.OnStateChange(func(xsync.ConnectionState) { refresh() }),
		e.OnDegraded(func(bool) { refresh() }),
		e.OnSystemMessage(func(msg string) { b.send(systemMsg{Message: msg}) }),
		e.OnMutationError(func(err xsync.MutationError) { b.send(mutationFailedMsg{Err: err}) }),
	)
	return b
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	default:
	}
}

// Close detaches from the engine.
func (b *Bridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
}

// ListenCmd waits for the next engine event. It should be re-issued after
// each message to continue listening.
func (b *Bridge) ListenCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}
