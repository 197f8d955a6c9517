package status

import (
	"charm.land/lipgloss/v2"

	"github.com/garrettladley/notisync/internal/tui/theme"
	"github.com/garrettladley/notisync/internal/xsync"
)

const statusDot = "●"

// Indicator shows the push connection state.
type Indicator struct {
	State    xsync.ConnectionState
	Degraded bool
}

func (i Indicator) Render() string {
	if i.Degraded {
		return lipgloss.NewStyle().
			Foreground(theme.ColorError).
			Render(statusDot + " degraded, polling")
	}

	switch i.State {
	case xsync.StateConnected:
		return lipgloss.NewStyle().
			Foreground(theme.ColorConnected).
			Render(statusDot + " live")
	case xsync.StateConnecting:
		return lipgloss.NewStyle().
			Foreground(theme.ColorBgLight).
			Render(statusDot + " connecting...")
	case xsync.StateReconnecting:
		return lipgloss.NewStyle().
			Foreground(theme.ColorWarning).
			Render(statusDot + " reconnecting...")
	default:
		return lipgloss.NewStyle().
			Foreground(theme.ColorDim).
			Render(statusDot + " offline")
	}
}
