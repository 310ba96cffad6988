package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/reservation"
)

// catalogPage searches the public book catalog.
type catalogPage struct {
	input    textinput.Model
	results  []lending.Book
	selected int
	loading  bool
	searched bool
	err      string
}

func newCatalogPage() catalogPage {
	return catalogPage{input: newInput("title, author or ISBN", 200)}
}

// browseRow is one copy in the borrow listing.
type browseRow struct {
	book lending.Book
	copy lending.Copy
	own  bool
}

// browsePage lists copies that can be borrowed.
type browsePage struct {
	input    textinput.Model
	rows     []browseRow
	selected int
	loading  bool
	searched bool
	err      string
}

func newBrowsePage() browsePage {
	return browsePage{input: newInput("filter by title or author", 200)}
}

// handleSearchInputKey edits the search field on the catalog and browse
// pages. Enter runs the search.
func (m Model) handleSearchInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	in := m.focusedInput()
	switch {
	case key.Matches(msg, m.keys.Escape):
		in.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		in.Blur()
		var cmd tea.Cmd
		if m.route == RouteCatalog {
			cmd = m.searchCatalog()
		} else {
			cmd = m.searchAvailable()
		}
		return m, cmd
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return m, cmd
}

func (m *Model) searchCatalog() tea.Cmd {
	query := strings.TrimSpace(m.catalog.input.Value())
	if query == "" {
		m.catalog.err = "Type a title, author or ISBN to search."
		return nil
	}
	id := m.requests.Begin(string(RouteCatalog))
	m.catalog.loading = true
	m.catalog.err = ""
	return searchCatalogCmd(m.ctx, m.client, id, query)
}

func (m Model) handleCatalogResult(msg catalogResultMsg) (tea.Model, tea.Cmd) {
	if !m.requests.Accept(string(RouteCatalog), msg.id) {
		return m, nil
	}
	m.catalog.loading = false
	m.catalog.searched = true
	m.catalog.selected = 0
	switch lending.Classify(msg.err) {
	case lending.KindNone:
		m.catalog.results = msg.books
	case lending.KindNotFound:
		m.catalog.results = nil
	default:
		m.catalog.err = lending.Message(msg.err)
		m.logger.Warn("catalog search failed", "error", msg.err)
	}
	return m, nil
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := &m.catalog
	switch {
	case key.Matches(msg, m.keys.Search):
		page.input.Focus()
	case key.Matches(msg, m.keys.Up):
		page.selected = clampIndex(page.selected-1, len(page.results))
	case key.Matches(msg, m.keys.Down):
		page.selected = clampIndex(page.selected+1, len(page.results))
	case key.Matches(msg, m.keys.Top):
		page.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		page.selected = clampIndex(len(page.results)-1, len(page.results))
	case key.Matches(msg, m.keys.Retry):
		cmd := m.searchCatalog()
		return m, cmd
	case key.Matches(msg, m.keys.Confirm, m.keys.Add):
		if len(page.results) == 0 {
			page.input.Focus()
			return m, nil
		}
		book := page.results[page.selected]
		cmd := m.navigate(RouteAddCopy, book)
		return m, cmd
	}
	return m, nil
}

func (m *Model) searchAvailable() tea.Cmd {
	id := m.requests.Begin(string(RouteBrowse))
	m.browse.loading = true
	m.browse.err = ""
	return searchAvailableCmd(m.ctx, m.client, id, strings.TrimSpace(m.browse.input.Value()))
}

func (m Model) handleBrowseResult(msg browseResultMsg) (tea.Model, tea.Cmd) {
	if !m.requests.Accept(string(RouteBrowse), msg.id) {
		return m, nil
	}
	m.browse.loading = false
	m.browse.searched = true
	m.browse.selected = 0
	switch lending.Classify(msg.err) {
	case lending.KindNone:
		m.browse.rows = buildBrowseRows(msg.results, m.session.UserID())
	case lending.KindNotFound:
		m.browse.rows = nil
	case lending.KindAuthExpired:
		cmd := m.failed("browse", msg.err)
		return m, cmd
	default:
		m.browse.err = lending.Message(msg.err)
		m.logger.Warn("browse failed", "error", msg.err)
	}
	return m, nil
}

// buildBrowseRows flattens search results into one row per copy, listing
// copies the user can borrow before their own.
func buildBrowseRows(results []lending.AvailableBook, userID string) []browseRow {
	var borrowable, owned []browseRow
	for _, r := range results {
		groups := reservation.PartitionCopies(r.Copies, userID)
		for _, c := range groups.Borrowable {
			borrowable = append(borrowable, browseRow{book: r.Book, copy: c})
		}
		for _, c := range groups.Owned {
			owned = append(owned, browseRow{book: r.Book, copy: c, own: true})
		}
	}
	return append(borrowable, owned...)
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := &m.browse
	switch {
	case key.Matches(msg, m.keys.Search):
		page.input.Focus()
	case key.Matches(msg, m.keys.Up):
		page.selected = clampIndex(page.selected-1, len(page.rows))
	case key.Matches(msg, m.keys.Down):
		page.selected = clampIndex(page.selected+1, len(page.rows))
	case key.Matches(msg, m.keys.Top):
		page.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		page.selected = clampIndex(len(page.rows)-1, len(page.rows))
	case key.Matches(msg, m.keys.Retry):
		cmd := m.searchAvailable()
		return m, cmd
	case key.Matches(msg, m.keys.Confirm):
		if len(page.rows) == 0 {
			return m, nil
		}
		row := page.rows[page.selected]
		if row.own {
			m.setFlash("This is your own copy.", false)
			return m, nil
		}
		cmd := m.navigate(RouteReservation, reservePayload{Book: row.book, Copy: row.copy})
		return m, cmd
	}
	return m, nil
}

func (m Model) renderCatalog() string {
	styles := m.theme.Styles()
	page := m.catalog
	var b strings.Builder
	b.WriteString(styles.MutedText.Render("Search "))
	b.WriteString(page.input.View())
	b.WriteString("\n\n")

	switch {
	case page.loading:
		b.WriteString(m.spinner.View() + " Searching...")
	case page.err != "":
		b.WriteString(styles.DangerText.Render(page.err))
	case page.searched && len(page.results) == 0:
		b.WriteString(styles.MutedText.Render("No books found."))
	case !page.searched:
		b.WriteString(styles.FaintText.Render("Press / to search the catalog, then enter on a result to add your copy."))
	default:
		for i, book := range page.results {
			line := fmt.Sprintf("%-40s  %-28s  %s", truncate(book.Title, 40), truncate(strings.Join(book.Authors, ", "), 28), yearLabel(book.PublishedYear))
			b.WriteString(m.renderRow(line, i == page.selected))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderBrowse() string {
	styles := m.theme.Styles()
	page := m.browse
	var b strings.Builder
	b.WriteString(styles.MutedText.Render("Filter "))
	b.WriteString(page.input.View())
	b.WriteString("\n\n")

	switch {
	case page.loading:
		b.WriteString(m.spinner.View() + " Loading available copies...")
	case page.err != "":
		b.WriteString(styles.DangerText.Render(page.err))
	case page.searched && len(page.rows) == 0:
		b.WriteString(styles.MutedText.Render("No copies available right now."))
	default:
		for i, row := range page.rows {
			owner := reservation.OwnerLabel(row.copy.Owner)
			if row.own {
				owner = "your copy"
			}
			line := fmt.Sprintf("%-36s  %-24s  %-22s  up to %d days",
				truncate(row.book.Title, 36),
				truncate(strings.Join(row.book.Authors, ", "), 24),
				truncate(owner, 22),
				row.copy.MaxDuration)
			if row.own {
				line = styles.FaintText.Render(line)
			}
			b.WriteString(m.renderRow(line, i == page.selected))
			b.WriteString("\n")
		}
	}
	return b.String()
}
