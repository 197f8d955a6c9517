package footer

import (
	"strings"

	"charm.land/lipgloss/v2"
)

const padding = 2

// Footer pins a build label to the left and hints to the right. On narrow
// terminals the label is dropped before the hints are cut.
type Footer struct {
	hints string
	width int
}

func New(hints string, width int) Footer {
	return Footer{hints: hints, width: width}
}

func (f Footer) Render() string {
	inner := max(f.width-padding*2, 0)
	left := f.leftContent()

	if lipgloss.Width(left)+lipgloss.Width(f.hints)+1 > inner {
		left = ""
	}
	hints := lipgloss.NewStyle().MaxWidth(inner).Render(f.hints)
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(hints), 0)

	return lipgloss.NewStyle().
		PaddingLeft(padding).
		PaddingRight(padding).
		PaddingBottom(1).
		Render(left + strings.Repeat(" ", gap) + hints)
}
