package theme

import "charm.land/lipgloss/v2"

var (
	ColorBlack = lipgloss.Color("#000000")
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorDim   = lipgloss.Color("#666666")
)

var (
	ColorAccent    = lipgloss.Color("#00F19F") // unread marker, badge, selection
	ColorInfo      = lipgloss.Color("#67AEE6") // system broadcasts
	ColorConnected = lipgloss.Color("#16EC06")
	ColorWarning   = lipgloss.Color("#FFDE00") // HIGH priority, reconnecting
	ColorError     = lipgloss.Color("#FF0026") // URGENT priority, degraded, failed mutations
)

var (
	ColorBgDark  = lipgloss.Color("#101518")
	ColorBgLight = lipgloss.Color("#283339") // selected row
)
