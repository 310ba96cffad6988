package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/inflight"
	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/reservation"
)

// addCopyPage lists a catalog book as one of the user's copies.
type addCopyPage struct {
	book lending.Book
	form form
}

func newAddCopyPage(book lending.Book, maxDuration int) addCopyPage {
	in := newInput("days", 3)
	in.SetValue(strconv.Itoa(maxDuration))
	return addCopyPage{book: book, form: newForm([]string{"Maximum loan length (days)"}, in)}
}

// reservePage borrows a pre-selected copy.
type reservePage struct {
	book lending.Book
	copy lending.Copy
	form form
}

func newReservePage(p reservePayload, defaultDays int) reservePage {
	days := defaultDays
	if p.Copy.MaxDuration > 0 && days > p.Copy.MaxDuration {
		days = p.Copy.MaxDuration
	}
	if days < 1 {
		days = 1
	}
	in := newInput("days", 3)
	in.SetValue(strconv.Itoa(days))
	return reservePage{book: p.Book, copy: p.Copy, form: newForm([]string{"Loan length (days)"}, in)}
}

// editPage changes the length of an existing reservation.
type editPage struct {
	res  lending.Reservation
	form form
}

func newEditPage(r lending.Reservation) editPage {
	days := r.RequestedDays
	if days <= 0 {
		if d, err := reservation.DurationDays(r.StartDate, r.EndDate); err == nil {
			days = d
		} else {
			days = 1
		}
	}
	in := newInput("days", 3)
	in.SetValue(strconv.Itoa(days))
	return editPage{res: r, form: newForm([]string{"Loan length (days)"}, in)}
}

func parseDays(s string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("enter a whole number of days")
	}
	return days, nil
}

func (m *Model) submitAddCopy() tea.Cmd {
	page := &m.addCopy
	days, err := parseDays(page.form.value(0))
	if err == nil && days < 1 {
		err = fmt.Errorf("maximum loan length must be at least 1 day")
	}
	if err != nil {
		page.form.err = capitalize(err.Error())
		return nil
	}
	if _, ok := m.guard.TryBegin(inflight.AddCopy); !ok {
		return nil
	}
	page.form.err = ""
	return addCopyCmd(m.ctx, m.client, lending.NewCopyFromBook(page.book, days))
}

func (m Model) handleCopyAdded(msg copyAddedMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.AddCopy)
	if msg.err != nil {
		if lending.Classify(msg.err) == lending.KindValidation && m.route == RouteAddCopy {
			m.addCopy.form.err = lending.Message(msg.err)
			return m, nil
		}
		cmd := m.failed("add copy", msg.err)
		return m, cmd
	}
	m.logger.Info("copy added", "copy_id", msg.copy.ID, "title", msg.copy.Title)
	cmd := m.navigate(RouteMyBooks, nil)
	m.setFlash(fmt.Sprintf("Added %q to your books.", msg.copy.Title), false)
	return m, cmd
}

func (m *Model) submitReservation() tea.Cmd {
	page := &m.reserve
	days, err := parseDays(page.form.value(0))
	if err == nil {
		err = reservation.ValidateRequestedDays(days, page.copy.MaxDuration)
	}
	if err != nil {
		page.form.err = capitalize(err.Error())
		return nil
	}
	if _, ok := m.guard.TryBegin(inflight.CreateReservation); !ok {
		return nil
	}
	page.form.err = ""
	return createReservationCmd(m.ctx, m.client, page.copy.ID, days)
}

func (m Model) handleReservationCreated(msg reservationCreatedMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.CreateReservation)
	if msg.err != nil {
		if lending.Classify(msg.err) == lending.KindValidation && m.route == RouteReservation {
			m.reserve.form.err = lending.Message(msg.err)
			return m, nil
		}
		cmd := m.failed("create reservation", msg.err)
		return m, cmd
	}
	m.logger.Info("reservation created", "reservation_id", msg.reservation.ID)
	cmd := m.navigate(RouteMyBooks, nil)
	m.setFlash("Reservation created.", false)
	return m, cmd
}

func (m *Model) submitEdit() tea.Cmd {
	page := &m.edit
	days, err := parseDays(page.form.value(0))
	if err == nil {
		err = reservation.ValidateRequestedDays(days, m.editMaxDuration())
	}
	if err != nil {
		page.form.err = capitalize(err.Error())
		return nil
	}
	if _, ok := m.guard.TryBegin(inflight.UpdateReservation); !ok {
		return nil
	}
	page.form.err = ""
	end := reservation.EndDateFor(page.res.StartDate, days)
	return updateReservationCmd(m.ctx, m.client, page.res.ID, days, end)
}

func (m *Model) editMaxDuration() int {
	if m.edit.res.Copy == nil {
		return 0
	}
	return m.edit.res.Copy.MaxDuration
}

func (m Model) handleReservationUpdated(msg reservationUpdatedMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.UpdateReservation)
	if msg.err != nil {
		if lending.Classify(msg.err) == lending.KindValidation && m.route == RouteEditReservation {
			m.edit.form.err = lending.Message(msg.err)
			return m, nil
		}
		cmd := m.failed("update reservation", msg.err)
		return m, cmd
	}
	m.logger.Info("reservation updated", "reservation_id", msg.reservation.ID)
	cmd := m.navigate(RouteMyBooks, nil)
	m.setFlash("Reservation updated.", false)
	return m, cmd
}

func (m Model) renderAddCopy() string {
	styles := m.theme.Styles()
	page := m.addCopy
	var b strings.Builder
	b.WriteString(m.renderBookSummary(page.book.Title, page.book.Authors, page.book.PublishedYear))
	b.WriteString(page.form.view(styles))
	b.WriteString(styles.FaintText.Render("enter: add to my books   esc: back"))
	return b.String()
}

func (m Model) renderReservation() string {
	styles := m.theme.Styles()
	page := m.reserve
	var b strings.Builder
	b.WriteString(m.renderBookSummary(page.book.Title, page.book.Authors, page.book.PublishedYear))
	fmt.Fprintf(&b, "%s %s\n", styles.MutedText.Render("Owner:"), reservation.OwnerLabel(page.copy.Owner))
	fmt.Fprintf(&b, "%s %d days\n\n", styles.MutedText.Render("Owner allows up to:"), reservation.MaxDays(page.copy.MaxDuration))
	b.WriteString(page.form.view(styles))
	if days, err := parseDays(page.form.value(0)); err == nil && days > 0 {
		end := reservation.EndDateFor(m.now(), days)
		fmt.Fprintf(&b, "%s %s\n\n", styles.MutedText.Render("Return by:"), end.Local().Format("Mon Jan 2, 2006"))
	}
	b.WriteString(styles.FaintText.Render("enter: reserve   esc: back"))
	return b.String()
}

func (m Model) renderEdit() string {
	styles := m.theme.Styles()
	page := m.edit
	var authors []string
	year := 0
	if page.res.Copy != nil {
		authors = page.res.Copy.Authors
		year = page.res.Copy.PublishedYear
	}
	now := m.now()
	status := reservation.DeriveStatus(page.res.StartDate, page.res.EndDate, now)

	var b strings.Builder
	b.WriteString(m.renderBookSummary(page.res.Title(), authors, year))
	b.WriteString(styles.StatusStyle(status).Render(string(status)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", styles.MutedText.Render("Started:"), page.res.StartDate.Local().Format("Mon Jan 2, 2006"))
	fmt.Fprintf(&b, "%s %s\n", styles.MutedText.Render("Ends:"), page.res.EndDate.Local().Format("Mon Jan 2, 2006"))
	fmt.Fprintf(&b, "%s %d days\n\n", styles.MutedText.Render("Owner allows up to:"), reservation.MaxDays(m.editMaxDuration()))
	b.WriteString(page.form.view(styles))
	if days, err := parseDays(page.form.value(0)); err == nil && days > 0 {
		end := reservation.EndDateFor(page.res.StartDate, days)
		fmt.Fprintf(&b, "%s %s\n\n", styles.MutedText.Render("New end date:"), end.Local().Format("Mon Jan 2, 2006"))
	}
	b.WriteString(styles.FaintText.Render("enter: save   esc: back"))
	return b.String()
}

func (m Model) renderBookSummary(title string, authors []string, year int) string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n")
	if len(authors) > 0 {
		b.WriteString(styles.MutedText.Render(strings.Join(authors, ", ")))
		b.WriteString("  ")
	}
	b.WriteString(styles.FaintText.Render(yearLabel(year)))
	b.WriteString("\n\n")
	return b.String()
}
