package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/garrettladley/notisync/internal/notification"
	"github.com/garrettladley/notisync/internal/tui/components/activity"
	"github.com/garrettladley/notisync/internal/tui/components/footer"
	"github.com/garrettladley/notisync/internal/tui/components/status"
	"github.com/garrettladley/notisync/internal/tui/theme"
	"github.com/garrettladley/notisync/internal/xslog"
)

var _ tea.Model = (*Model)(nil)

const keyHelp = "↑/↓ move  r read  a read all  d delete  q quit"

const (
	activityBuckets = 16
	activityWindow  = time.Minute
)

type Model struct {
	ready          bool
	viewportWidth  int
	viewportHeight int
	theme          theme.Theme
	deps           Deps
	bridge         *Bridge
	now            func() time.Time

	items    []notification.Notification
	unread   int
	status   status.Indicator
	cursor   int
	banner   string
	errorMsg string
}

func New(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	return Model{
		theme:  theme.New(),
		deps:   deps,
		bridge: NewBridge(deps.Engine),
		now:    time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return refreshMsg{} },
		m.bridge.ListenCmd(m.deps.Ctx),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewportWidth = msg.Width
		m.viewportHeight = msg.Height
		m.ready = true

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case refreshMsg:
		m.refresh()
		return m, m.bridge.ListenCmd(m.deps.Ctx)

	case systemMsg:
		m.banner = msg.Message
		return m, m.bridge.ListenCmd(m.deps.Ctx)

	case mutationFailedMsg:
		m.errorMsg = msg.Err.Kind.String() + " failed, changes reverted"
		m.refresh()
		return m, m.bridge.ListenCmd(m.deps.Ctx)

	case mutationDoneMsg:
		if msg.Err == nil {
			m.errorMsg = ""
		} else if m.deps.Logger != nil {
			m.deps.Logger.Debug("mutation failed", xslog.Error(msg.Err))
		}
	}

	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		m.bridge.Close()
		return tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, max(len(m.items)-1, 0))
	case "r":
		if n, ok := m.selected(); ok && !n.IsRead {
			return m.mutate(func(ctx context.Context) error { return m.deps.Engine.MarkRead(ctx, n.ID) })
		}
	case "a":
		if m.unread > 0 {
			return m.mutate(m.deps.Engine.MarkAllRead)
		}
	case "d":
		if n, ok := m.selected(); ok {
			return m.mutate(func(ctx context.Context) error { return m.deps.Engine.DeleteNotification(ctx, n.ID) })
		}
	}
	return nil
}

// mutate applies optimistically inside the engine, so the list is refreshed
// before the server answers.
func (m *Model) mutate(fn func(context.Context) error) tea.Cmd {
	ctx := m.deps.Ctx
	return func() tea.Msg {
		return mutationDoneMsg{Err: fn(ctx)}
	}
}

func (m *Model) refresh() {
	e := m.deps.Engine
	m.items = e.Recent()
	m.unread = e.UnreadCount()
	m.status = status.Indicator{State: e.ConnectionState(), Degraded: e.Degraded()}
	m.cursor = min(m.cursor, max(len(m.items)-1, 0))
}

func (m *Model) selected() (notification.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return notification.Notification{}, false
	}
	return m.items[m.cursor], true
}

func (m *Model) View() tea.View {
	view := tea.NewView("")
	view.AltScreen = true
	view.BackgroundColor = m.theme.Background()

	if !m.ready {
		return view
	}

	header := m.headerView()
	foot := footer.New(lipgloss.NewStyle().Foreground(theme.ColorDim).Render(keyHelp), m.viewportWidth).Render()

	var sections []string
	sections = append(sections, header)
	if m.banner != "" {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorInfo).
			PaddingLeft(2).
			Render("» "+m.banner))
	}
	if m.errorMsg != "" {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorError).
			PaddingLeft(2).
			Render(m.errorMsg))
	}

	used := lipgloss.Height(strings.Join(sections, "\n")) + lipgloss.Height(foot) + 1
	sections = append(sections, "", m.listView(max(m.viewportHeight-used, 1)))

	body := lipgloss.JoinVertical(lipgloss.Left, sections...)
	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.Place(m.viewportWidth, m.viewportHeight-lipgloss.Height(foot), lipgloss.Left, lipgloss.Top, body),
		foot,
	)

	view.SetContent(content)
	return view
}

func (m *Model) headerView() string {
	title := m.theme.Base().Bold(true).Render("notisync")

	badgeStyle := lipgloss.NewStyle().Foreground(theme.ColorDim)
	if m.unread > 0 {
		badgeStyle = lipgloss.NewStyle().Foreground(theme.ColorBlack).Background(theme.ColorAccent).Bold(true)
	}
	badge := badgeStyle.Padding(0, 1).Render(strconv.Itoa(m.unread) + " unread")

	left := title + "  " + badge + "  " + m.activityView()
	right := m.status.Render()
	spacer := strings.Repeat(" ", max(m.viewportWidth-lipgloss.Width(left)-lipgloss.Width(right)-4, 1))

	return lipgloss.NewStyle().Padding(1, 2, 0, 2).Render(left + spacer + right)
}

// activityView sketches arrivals per minute across the cached items.
func (m *Model) activityView() string {
	times := make([]time.Time, 0, len(m.items))
	for _, n := range m.items {
		times = append(times, n.CreatedAt)
	}
	return activity.Sparkline{
		Counts: activity.Buckets(times, m.now(), activityWindow, activityBuckets),
		Rows:   1,
		Color:  theme.ColorInfo,
	}.Render()
}
