package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/logtail"
	"github.com/five82/bookshare/internal/reservation"
	"github.com/five82/bookshare/internal/session"
)

// Messages

type tickMsg time.Time

type navigateMsg struct {
	to      Route
	payload any
}

type sessionReadyMsg struct {
	status session.Status
}

type loginResultMsg struct {
	user lending.User
	err  error
}

type signupResultMsg struct {
	err error
}

type catalogResultMsg struct {
	id    string
	books []lending.Book
	err   error
}

type browseResultMsg struct {
	id      string
	results []lending.AvailableBook
	err     error
}

type dashboardMsg struct {
	err error
}

type copyAddedMsg struct {
	copy lending.Copy
	err  error
}

type copyDeletedMsg struct {
	removal reservation.Removal[lending.Copy]
	err     error
}

type reservationCreatedMsg struct {
	reservation lending.Reservation
	err         error
}

type reservationUpdatedMsg struct {
	reservation lending.Reservation
	err         error
}

type reservationCanceledMsg struct {
	removal reservation.Removal[lending.Reservation]
	err     error
}

type activityMsg struct {
	id      string
	entries []logtail.Entry
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func navigateCmd(to Route) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{to: to}
	}
}

func initSessionCmd(ctx context.Context, sess *session.Store, verifier session.Verifier) tea.Cmd {
	return func() tea.Msg {
		return sessionReadyMsg{status: sess.Initialize(ctx, verifier)}
	}
}

// loginCmd exchanges credentials for a token, persists it and loads the
// user it belongs to. A token that fails verification is discarded.
func loginCmd(ctx context.Context, client lending.API, sess *session.Store, creds lending.Credentials) tea.Cmd {
	return func() tea.Msg {
		token, err := client.Login(ctx, creds)
		if err != nil {
			return loginResultMsg{err: err}
		}
		if err := sess.PersistCredential(token); err != nil {
			return loginResultMsg{err: err}
		}
		user, err := client.Verify(ctx)
		if err != nil {
			_ = sess.Logout()
			return loginResultMsg{err: err}
		}
		return loginResultMsg{user: user}
	}
}

func signupCmd(ctx context.Context, client lending.API, req lending.Signup) tea.Cmd {
	return func() tea.Msg {
		return signupResultMsg{err: client.Signup(ctx, req)}
	}
}

func searchCatalogCmd(ctx context.Context, client lending.API, id, query string) tea.Cmd {
	return func() tea.Msg {
		books, err := client.SearchCatalog(ctx, query)
		return catalogResultMsg{id: id, books: books, err: err}
	}
}

func searchAvailableCmd(ctx context.Context, client lending.API, id, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := client.SearchAvailable(ctx, query)
		return browseResultMsg{id: id, results: results, err: err}
	}
}

func addCopyCmd(ctx context.Context, client lending.API, listing lending.NewCopy) tea.Cmd {
	return func() tea.Msg {
		c, err := client.AddCopy(ctx, listing)
		return copyAddedMsg{copy: c, err: err}
	}
}

func deleteCopyCmd(ctx context.Context, client lending.API, removal reservation.Removal[lending.Copy]) tea.Cmd {
	return func() tea.Msg {
		return copyDeletedMsg{removal: removal, err: client.DeleteCopy(ctx, removal.Item.ID)}
	}
}

func createReservationCmd(ctx context.Context, client lending.API, copyID string, days int) tea.Cmd {
	return func() tea.Msg {
		r, err := client.CreateReservation(ctx, copyID, days)
		return reservationCreatedMsg{reservation: r, err: err}
	}
}

func updateReservationCmd(ctx context.Context, client lending.API, id string, days int, end time.Time) tea.Cmd {
	return func() tea.Msg {
		r, err := client.UpdateReservation(ctx, id, days, end)
		return reservationUpdatedMsg{reservation: r, err: err}
	}
}

func cancelReservationCmd(ctx context.Context, client lending.API, removal reservation.Removal[lending.Reservation]) tea.Cmd {
	return func() tea.Msg {
		return reservationCanceledMsg{removal: removal, err: client.CancelReservation(ctx, removal.Item.ID)}
	}
}

func readActivityCmd(path, id string, limit int) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, limit)
		return activityMsg{id: id, entries: entries, err: err}
	}
}
