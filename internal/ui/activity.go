package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bookshare/internal/logtail"
)

const activityFetchLimit = 500

// activityPage tails the application log.
type activityPage struct {
	entries []logtail.Entry
	offset  int // lines scrolled up from the newest entry
	loading bool
	err     string
}

func (m *Model) loadActivity() tea.Cmd {
	if m.logPath == "" {
		m.activity.err = "No log file configured."
		return nil
	}
	id := m.requests.Begin(string(RouteActivity))
	m.activity.loading = true
	return readActivityCmd(m.logPath, id, activityFetchLimit)
}

func (m Model) handleActivity(msg activityMsg) (tea.Model, tea.Cmd) {
	if !m.requests.Accept(string(RouteActivity), msg.id) {
		return m, nil
	}
	m.activity.loading = false
	if msg.err != nil {
		m.activity.err = msg.err.Error()
		return m, nil
	}
	m.activity.err = ""
	m.activity.entries = msg.entries
	m.activity.offset = 0
	return m, nil
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := &m.activity
	switch {
	case key.Matches(msg, m.keys.Retry):
		cmd := m.loadActivity()
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		if page.offset < len(page.entries)-1 {
			page.offset++
		}
	case key.Matches(msg, m.keys.Down):
		if page.offset > 0 {
			page.offset--
		}
	case key.Matches(msg, m.keys.Top):
		page.offset = max(len(page.entries)-1, 0)
	case key.Matches(msg, m.keys.Bottom):
		page.offset = 0
	}
	return m, nil
}

func (m Model) renderActivity() string {
	styles := m.theme.Styles()
	page := m.activity
	switch {
	case page.loading && len(page.entries) == 0:
		return m.spinner.View() + " Reading log..."
	case page.err != "":
		return styles.DangerText.Render(page.err)
	case len(page.entries) == 0:
		return styles.MutedText.Render("Nothing logged yet.")
	}

	visible := m.contentHeight()
	end := len(page.entries) - page.offset
	start := max(end-visible, 0)

	var b strings.Builder
	for _, e := range page.entries[start:end] {
		b.WriteString(m.levelStyle(e.Level).Render(truncate(e.Format(), max(m.width-2, 20))))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch strings.ToUpper(level) {
	case "ERROR":
		return styles.DangerText
	case "WARN":
		return styles.WarningText
	case "DEBUG":
		return styles.FaintText
	default:
		return styles.Text
	}
}
