package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/inflight"
	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/reservation"
	"github.com/five82/bookshare/internal/state"
)

const (
	paneCopies = iota
	paneReservations
)

// myBooksPage shows the user's own copies and their reservations.
type myBooksPage struct {
	pane       int
	copySel    int
	resSel     int
	loading    bool
	confirming string // id awaiting a second delete press
}

func (p *myBooksPage) clamp(snap state.Snapshot) {
	p.copySel = clampIndex(p.copySel, len(snap.Copies))
	p.resSel = clampIndex(p.resSel, len(snap.Reservations))
}

func (m Model) handleMyBooksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := &m.mybooks
	if !key.Matches(msg, m.keys.Delete) {
		page.confirming = ""
	}
	copies, reservations := m.snapshot.Copies, m.snapshot.Reservations

	switch {
	case key.Matches(msg, m.keys.Tab, m.keys.ShiftTab):
		if page.pane == paneCopies {
			page.pane = paneReservations
		} else {
			page.pane = paneCopies
		}
	case key.Matches(msg, m.keys.Up):
		m.moveMyBooks(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveMyBooks(1)
	case key.Matches(msg, m.keys.Top):
		m.moveMyBooks(-len(copies) - len(reservations))
	case key.Matches(msg, m.keys.Bottom):
		m.moveMyBooks(len(copies) + len(reservations))
	case key.Matches(msg, m.keys.Retry):
		cmd := m.refreshDashboard()
		return m, cmd
	case key.Matches(msg, m.keys.Add):
		cmd := m.navigate(RouteCatalog, nil)
		m.setFlash("Search for a book, then press enter to add your copy.", false)
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		if page.pane != paneReservations || len(reservations) == 0 {
			return m, nil
		}
		cmd := m.navigate(RouteEditReservation, reservations[page.resSel])
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		cmd := m.confirmDelete()
		return m, cmd
	}
	return m, nil
}

func (m *Model) moveMyBooks(delta int) {
	if m.mybooks.pane == paneCopies {
		m.mybooks.copySel = clampIndex(m.mybooks.copySel+delta, len(m.snapshot.Copies))
		return
	}
	m.mybooks.resSel = clampIndex(m.mybooks.resSel+delta, len(m.snapshot.Reservations))
}

// confirmDelete arms the delete on the first press and fires it on the
// second press for the same row.
func (m *Model) confirmDelete() tea.Cmd {
	page := &m.mybooks
	var id, prompt string
	switch page.pane {
	case paneCopies:
		if len(m.snapshot.Copies) == 0 {
			return nil
		}
		c := m.snapshot.Copies[page.copySel]
		id, prompt = c.ID, fmt.Sprintf("Delete your copy of %q? Press d again to confirm.", c.Title)
	default:
		if len(m.snapshot.Reservations) == 0 {
			return nil
		}
		r := m.snapshot.Reservations[page.resSel]
		id, prompt = r.ID, fmt.Sprintf("Cancel your reservation of %q? Press d again to confirm.", r.Title())
	}
	if page.confirming != id {
		page.confirming = id
		m.setFlash(prompt, false)
		return nil
	}
	page.confirming = ""
	if page.pane == paneCopies {
		return m.deleteCopy(id)
	}
	return m.cancelReservation(id)
}

// deleteCopy removes the copy from view at once and restores it if the
// server refuses.
func (m *Model) deleteCopy(id string) tea.Cmd {
	if _, ok := m.guard.TryBegin(inflight.DeleteCopy); !ok {
		return nil
	}
	removal := m.store.RemoveCopy(id)
	if !removal.Found {
		m.guard.End(inflight.DeleteCopy)
		return nil
	}
	m.snapshot = m.store.Snapshot()
	m.mybooks.clamp(m.snapshot)
	m.flash = flash{}
	return deleteCopyCmd(m.ctx, m.client, removal)
}

func (m Model) handleCopyDeleted(msg copyDeletedMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.DeleteCopy)
	if msg.err != nil {
		m.store.RestoreCopy(msg.removal)
		m.snapshot = m.store.Snapshot()
		cmd := m.failed("delete copy", msg.err)
		return m, cmd
	}
	m.store.ConfirmCopy(msg.removal)
	m.logger.Info("copy deleted", "copy_id", msg.removal.Item.ID)
	m.setFlash(fmt.Sprintf("Removed %q from your books.", msg.removal.Item.Title), false)
	return m, nil
}

func (m *Model) cancelReservation(id string) tea.Cmd {
	if _, ok := m.guard.TryBegin(inflight.CancelReservation); !ok {
		return nil
	}
	removal := m.store.RemoveReservation(id)
	if !removal.Found {
		m.guard.End(inflight.CancelReservation)
		return nil
	}
	m.snapshot = m.store.Snapshot()
	m.mybooks.clamp(m.snapshot)
	m.flash = flash{}
	return cancelReservationCmd(m.ctx, m.client, removal)
}

func (m Model) handleReservationCanceled(msg reservationCanceledMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.CancelReservation)
	if msg.err != nil {
		m.store.RestoreReservation(msg.removal)
		m.snapshot = m.store.Snapshot()
		cmd := m.failed("cancel reservation", msg.err)
		return m, cmd
	}
	m.store.ConfirmReservation(msg.removal)
	m.logger.Info("reservation cancelled", "reservation_id", msg.removal.Item.ID)
	m.setFlash("Reservation cancelled.", false)
	return m, nil
}

func (m Model) renderMyBooks() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	page := m.mybooks

	if !snap.HasData {
		if page.loading {
			return m.spinner.View() + " Loading your books..."
		}
		if snap.LastError != nil {
			return styles.DangerText.Render(lending.Message(snap.LastError))
		}
		return styles.MutedText.Render("No data yet. Press r to refresh.")
	}

	var copies strings.Builder
	if len(snap.Copies) == 0 {
		copies.WriteString(styles.MutedText.Render("You have not listed any copies. Press a to add one."))
	}
	for i, c := range snap.Copies {
		line := fmt.Sprintf("%-36s  %-24s  max %d days", truncate(c.Title, 36), truncate(strings.Join(c.Authors, ", "), 24), c.MaxDuration)
		copies.WriteString(m.renderRow(line, page.pane == paneCopies && i == page.copySel))
		copies.WriteString("\n")
	}

	rows := reservation.BuildRows(snap.Reservations, m.now())
	var loans strings.Builder
	if len(rows) == 0 {
		loans.WriteString(styles.MutedText.Render("No reservations."))
	}
	for i, row := range rows {
		loans.WriteString(m.renderReservationRow(row, page.pane == paneReservations && i == page.resSel))
		loans.WriteString("\n")
	}
	counts := reservation.CountByStatus(rows)
	summary := fmt.Sprintf("%d active  %d upcoming  %d overdue",
		counts[reservation.StatusActive], counts[reservation.StatusUpcoming], counts[reservation.StatusOverdue])

	copyPane, loanPane := styles.Pane, styles.Pane
	if page.pane == paneCopies {
		copyPane = styles.Focused
	} else {
		loanPane = styles.Focused
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("My copies"))
	b.WriteString("\n")
	b.WriteString(copyPane.Width(width).Render(strings.TrimRight(copies.String(), "\n")))
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Bold(true).Render("My reservations"))
	b.WriteString("  ")
	b.WriteString(styles.MutedText.Render(summary))
	b.WriteString("\n")
	b.WriteString(loanPane.Width(width).Render(strings.TrimRight(loans.String(), "\n")))
	return b.String()
}

func (m Model) renderReservationRow(row reservation.Row, selected bool) string {
	styles := m.theme.Styles()
	dates := fmt.Sprintf("%s → %s", row.Start.Local().Format("Jan 2"), row.End.Local().Format("Jan 2"))
	detail := fmt.Sprintf("%d days", row.DurationDays)
	if row.Invalid {
		detail = "invalid dates"
	} else if row.Status == reservation.StatusActive {
		detail = fmt.Sprintf("%d days left", row.RemainingDays)
	}
	line := fmt.Sprintf("%-32s  %-20s  %-16s  %s", truncate(row.Title, 32), truncate(row.Owner, 20), dates, detail)
	badge := styles.StatusStyle(row.Status).Render(string(row.Status))
	return badge + " " + m.renderRow(line, selected)
}
