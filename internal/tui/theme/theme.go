package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Theme holds the styles shared by every view.
type Theme struct {
	background color.Color
	base       lipgloss.Style
	muted      lipgloss.Style
	marker     lipgloss.Style
	selected   lipgloss.Style
}

func New() Theme {
	return Theme{
		background: ColorBgDark,
		base:       lipgloss.NewStyle().Foreground(ColorWhite),
		muted:      lipgloss.NewStyle().Foreground(ColorDim),
		marker:     lipgloss.NewStyle().Foreground(ColorAccent),
		selected:   lipgloss.NewStyle().Background(ColorBgLight),
	}
}

func (t Theme) Background() color.Color { return t.background }

func (t Theme) Base() lipgloss.Style { return t.base }

// Muted is for read items, timestamps and hints.
func (t Theme) Muted() lipgloss.Style { return t.muted }

func (t Theme) UnreadMarker() lipgloss.Style { return t.marker }

func (t Theme) Selected() lipgloss.Style { return t.selected }

// PriorityColor reports the tag color for a priority name, or false when the
// priority is not called out.
func (t Theme) PriorityColor(priority string) (color.Color, bool) {
	switch priority {
	case "URGENT":
		return ColorError, true
	case "HIGH":
		return ColorWarning, true
	default:
		return nil, false
	}
}
