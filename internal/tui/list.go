package tui

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/garrettladley/notisync/internal/notification"
)

const timeLayout = "Jan 2 15:04"

func (m *Model) listView(height int) string {
	if len(m.items) == 0 {
		return m.theme.Muted().PaddingLeft(2).Render("no notifications")
	}

	// keep the cursor in view
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(start+height, len(m.items))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.rowView(m.items[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) rowView(n notification.Notification, selected bool) string {
	marker := "  "
	titleStyle := m.theme.Muted()
	if !n.IsRead {
		marker = m.theme.UnreadMarker().Render("● ")
		titleStyle = m.theme.Base().Bold(true)
	}

	var tag string
	if c, ok := m.theme.PriorityColor(string(n.Priority)); ok {
		tag = lipgloss.NewStyle().Foreground(c).Render(string(n.Priority) + " ")
	}

	when := m.theme.Muted().Render(n.CreatedAt.Local().Format(timeLayout))
	text := marker + tag + titleStyle.Render(n.Title)
	if n.Message != "" {
		text += m.theme.Muted().Render("  " + n.Message)
	}

	width := max(m.viewportWidth-4, 0)
	gap := max(width-lipgloss.Width(text)-lipgloss.Width(when), 1)
	row := text + strings.Repeat(" ", gap) + when

	style := lipgloss.NewStyle()
	if selected {
		style = m.theme.Selected()
	}
	style = style.PaddingLeft(2).MaxWidth(m.viewportWidth)
	return style.Render(row)
}
