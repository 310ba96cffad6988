package ui

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bookshare/internal/session"
)

var navRoutes = []struct {
	key   string
	route Route
}{
	{"1", RouteCatalog},
	{"2", RouteBrowse},
	{"3", RouteMyBooks},
	{"4", RouteActivity},
}

func (m Model) renderMain() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	content := lipgloss.NewStyle().
		Padding(1, 2).
		Height(m.contentHeight()).
		MaxHeight(m.contentHeight() + 2).
		Render(m.renderContent())
	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

// contentHeight is the number of lines available between header and footer.
func (m Model) contentHeight() int {
	return max(m.height-6, 3)
}

func (m Model) renderContent() string {
	if m.waiting != nil {
		return m.spinner.View() + " Checking your session..."
	}
	switch m.route {
	case RouteCatalog:
		return m.renderCatalog()
	case RouteBrowse:
		return m.renderBrowse()
	case RouteLogin:
		return m.renderLogin()
	case RouteSignup:
		return m.renderSignup()
	case RouteMyBooks:
		return m.renderMyBooks()
	case RouteAddCopy:
		return m.renderAddCopy()
	case RouteReservation:
		return m.renderReservation()
	case RouteEditReservation:
		return m.renderEdit()
	case RouteActivity:
		return m.renderActivity()
	default:
		return ""
	}
}

// renderHeader shows the logo, route tabs and session state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bar := lipgloss.NewStyle().Background(lipgloss.Color(m.theme.Surface))

	parts := []string{bar.Inherit(styles.Logo).Render("bookshare")}
	for _, nav := range navRoutes {
		label := fmt.Sprintf("%s %s", nav.key, nav.route.title())
		style := styles.MutedText
		if m.route == nav.route {
			style = styles.AccentText.Bold(true)
		}
		parts = append(parts, bar.Inherit(style).Render(label))
	}
	if m.route != "" && !isNavRoute(m.route) {
		parts = append(parts, bar.Inherit(styles.AccentText.Bold(true)).Render(m.route.title()))
	}

	left := strings.Join(parts, bar.Render("   "))
	right := bar.Inherit(m.sessionStyle()).Render(m.sessionLabel())
	if m.snapshot.IsOffline() {
		right = bar.Inherit(styles.DangerText).Render("offline") + bar.Render("  ") + right
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return styles.Header.Width(m.width).Render(left + bar.Render(strings.Repeat(" ", gap)) + right)
}

func isNavRoute(r Route) bool {
	for _, nav := range navRoutes {
		if nav.route == r {
			return true
		}
	}
	return false
}

func (m Model) sessionLabel() string {
	snap := m.session.Snapshot()
	switch snap.Status {
	case session.StatusInitializing:
		return "checking session..."
	case session.StatusAuthenticated:
		if snap.User != nil {
			return "signed in as " + displayName(*snap.User)
		}
		return "signed in"
	default:
		return "guest (L to log in)"
	}
}

func (m Model) sessionStyle() lipgloss.Style {
	styles := m.theme.Styles()
	switch m.session.Status() {
	case session.StatusAuthenticated:
		return styles.SuccessText
	case session.StatusInitializing:
		return styles.WarningText
	default:
		return styles.MutedText
	}
}

// renderFooter shows the flash message, or key hints when there is none.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	text := m.flash.text
	style := styles.Footer
	if text == "" {
		text = m.footerHints()
	} else if m.flash.isErr {
		style = style.Foreground(lipgloss.Color(m.theme.Danger))
	} else {
		style = style.Foreground(lipgloss.Color(m.theme.Info))
	}
	return style.Width(m.width).Render(truncate(text, max(m.width-2, 10)))
}

func (m Model) footerHints() string {
	switch m.route {
	case RouteCatalog:
		return "/ search  j/k move  enter add copy  ? help  q quit"
	case RouteBrowse:
		return "/ filter  j/k move  enter reserve  r reload  ? help  q quit"
	case RouteMyBooks:
		return "tab switch pane  j/k move  a add  e edit  d delete/cancel  r refresh  ? help"
	case RouteActivity:
		return "j/k scroll  g/G oldest/newest  r reload  ? help  q quit"
	default:
		return "? help  ctrl+c quit"
	}
}

func (m Model) renderRow(line string, selected bool) string {
	if selected {
		return m.theme.Styles().Selected.Render(line)
	}
	return line
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}

func yearLabel(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", year)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
