package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/gate"
	"github.com/five82/bookshare/internal/inflight"
	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/prefs"
	"github.com/five82/bookshare/internal/session"
	"github.com/five82/bookshare/internal/state"
	"github.com/five82/bookshare/internal/storage"
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	Client     lending.API
	Session    *session.Store
	Gate       *gate.Gate
	Store      *state.Store
	Refresh    func(context.Context) error // refreshes Store; nil disables
	LogPath    string
	PollTick   time.Duration
	Prefs      prefs.Prefs
	PrefsPath  string
	StartRoute Route
	Logger     *slog.Logger
	Now        func() time.Time
}

// navigation is a request parked until the session status resolves.
type navigation struct {
	to      Route
	payload any
}

type flash struct {
	text  string
	isErr bool
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	client    lending.API
	session   *session.Store
	gate      *gate.Gate
	store     *state.Store
	refresh   func(context.Context) error
	logPath   string
	prefs     prefs.Prefs
	prefsPath string
	pollTick  time.Duration
	start     Route
	logger    *slog.Logger
	now       func() time.Time

	// Shared across copies of the model
	requests *state.Requests
	guard    *inflight.Guard

	// UI state
	keys     keyMap
	theme    Theme
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	route    Route
	waiting  *navigation
	flash    flash
	snapshot state.Snapshot

	// Pages
	login    form
	signup   form
	catalog  catalogPage
	browse   browsePage
	mybooks  myBooksPage
	addCopy  addCopyPage
	reserve  reservePage
	edit     editPage
	activity activityPage
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New(nil, opts.Logger)
	}
	g := opts.Gate
	if g == nil {
		g = gate.New(storage.NewMemory(), PublicRoutes()...).WithLogger(opts.Logger)
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	p := opts.Prefs
	if p == (prefs.Prefs{}) {
		p = prefs.Defaults()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	start := opts.StartRoute
	if start == "" {
		start = RouteCatalog
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		client:    opts.Client,
		session:   sess,
		gate:      g,
		store:     store,
		refresh:   opts.Refresh,
		logPath:   opts.LogPath,
		prefs:     p,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		start:     start,
		logger:    logger.With("component", "ui"),
		now:       now,
		requests:  &state.Requests{},
		guard:     &inflight.Guard{},
		keys:      DefaultKeyMap(),
		theme:     GetTheme(p.Theme),
		spinner:   spin,
		catalog:   newCatalogPage(),
		browse:    newBrowsePage(),
	}
}

// Init implements tea.Model. Session initialization is the first command so
// the first frame renders while a stored credential is verified.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		initSessionCmd(m.ctx, m.session, m.client),
		navigateCmd(m.start),
		m.spinner.Tick,
		tickCmd(m.pollTick),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.snapshot = m.store.Snapshot()
		cmd := m.enforceSession()
		return m, tea.Batch(cmd, tickCmd(m.pollTick))

	case navigateMsg:
		cmd := m.navigate(msg.to, msg.payload)
		return m, cmd

	case sessionReadyMsg:
		m.logger.Debug("session resolved", "status", msg.status.String())
		var cmds []tea.Cmd
		if m.waiting != nil {
			nav := *m.waiting
			cmds = append(cmds, m.navigate(nav.to, nav.payload))
		}
		if msg.status == session.StatusAuthenticated && m.route != RouteMyBooks {
			cmds = append(cmds, m.refreshDashboard())
		}
		return m, tea.Batch(cmds...)

	case loginResultMsg:
		return m.handleLoginResult(msg)
	case signupResultMsg:
		return m.handleSignupResult(msg)
	case catalogResultMsg:
		return m.handleCatalogResult(msg)
	case browseResultMsg:
		return m.handleBrowseResult(msg)
	case dashboardMsg:
		return m.handleDashboard(msg)
	case copyAddedMsg:
		return m.handleCopyAdded(msg)
	case copyDeletedMsg:
		return m.handleCopyDeleted(msg)
	case reservationCreatedMsg:
		return m.handleReservationCreated(msg)
	case reservationUpdatedMsg:
		return m.handleReservationUpdated(msg)
	case reservationCanceledMsg:
		return m.handleReservationCanceled(msg)
	case activityMsg:
		return m.handleActivity(msg)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey routes keyboard input. While a text field has focus only
// control keys are intercepted; everything else is typed into the field.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.waiting != nil {
		if !key.Matches(msg, m.keys.Escape) {
			return m, nil
		}
		m.waiting = nil
		if m.route == "" {
			cmd := m.enter(RouteCatalog, nil)
			return m, cmd
		}
		return m, nil
	}
	if m.focusedInput() != nil {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil
	case key.Matches(msg, m.keys.GoCatalog):
		cmd := m.navigate(RouteCatalog, nil)
		return m, cmd
	case key.Matches(msg, m.keys.GoBrowse):
		cmd := m.navigate(RouteBrowse, nil)
		return m, cmd
	case key.Matches(msg, m.keys.GoMyBooks):
		cmd := m.navigate(RouteMyBooks, nil)
		return m, cmd
	case key.Matches(msg, m.keys.GoActivity):
		cmd := m.navigate(RouteActivity, nil)
		return m, cmd
	case key.Matches(msg, m.keys.Session):
		cmd := m.toggleSession()
		return m, cmd
	case key.Matches(msg, m.keys.Escape):
		cmd := m.back()
		return m, cmd
	}

	switch m.route {
	case RouteCatalog:
		return m.handleCatalogKey(msg)
	case RouteBrowse:
		return m.handleBrowseKey(msg)
	case RouteMyBooks:
		return m.handleMyBooksKey(msg)
	case RouteActivity:
		return m.handleActivityKey(msg)
	case RouteLogin, RouteSignup, RouteAddCopy, RouteReservation, RouteEditReservation:
		if key.Matches(msg, m.keys.Confirm, m.keys.Tab) {
			cmd := m.focusForm()
			return m, cmd
		}
	}
	return m, nil
}

// handleInputKey handles keys while a text field has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.route {
	case RouteCatalog, RouteBrowse:
		return m.handleSearchInputKey(msg)
	}

	f := m.currentForm()
	switch {
	case key.Matches(msg, m.keys.Escape):
		cmd := m.back()
		return m, cmd
	case key.Matches(msg, m.keys.Signup) && m.route == RouteLogin:
		cmd := m.navigate(RouteSignup, nil)
		return m, cmd
	case key.Matches(msg, m.keys.Tab):
		f.next()
		return m, nil
	case key.Matches(msg, m.keys.ShiftTab):
		f.prev()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if !f.last() {
			f.next()
			return m, nil
		}
		cmd := m.submit()
		return m, cmd
	}
	cmd := f.update(msg)
	return m, cmd
}

// focusedInput returns the text field that currently has focus, if any.
func (m *Model) focusedInput() *textinput.Model {
	switch m.route {
	case RouteCatalog:
		if m.catalog.input.Focused() {
			return &m.catalog.input
		}
	case RouteBrowse:
		if m.browse.input.Focused() {
			return &m.browse.input
		}
	default:
		if f := m.currentForm(); f != nil {
			return f.focused()
		}
	}
	return nil
}

// currentForm returns the form backing the current route, or nil.
func (m *Model) currentForm() *form {
	switch m.route {
	case RouteLogin:
		return &m.login
	case RouteSignup:
		return &m.signup
	case RouteAddCopy:
		return &m.addCopy.form
	case RouteReservation:
		return &m.reserve.form
	case RouteEditReservation:
		return &m.edit.form
	}
	return nil
}

func (m *Model) focusForm() tea.Cmd {
	if f := m.currentForm(); f != nil {
		f.focusIndex(f.index)
	}
	return nil
}

func (m *Model) submit() tea.Cmd {
	switch m.route {
	case RouteLogin:
		return m.submitLogin()
	case RouteSignup:
		return m.submitSignup()
	case RouteAddCopy:
		return m.submitAddCopy()
	case RouteReservation:
		return m.submitReservation()
	case RouteEditReservation:
		return m.submitEdit()
	}
	return nil
}

// navigate asks the gate whether destination may be shown and acts on the
// decision. A Wait parks the request until the session status resolves.
func (m *Model) navigate(to Route, payload any) tea.Cmd {
	decision, err := m.gate.Authorize(string(to), m.session.Status(), payload)
	if err != nil {
		m.logger.Warn("pending navigation payload not saved", "route", string(to), "error", err)
	}
	switch decision.Action {
	case gate.Wait:
		m.waiting = &navigation{to: to, payload: payload}
		return nil
	case gate.Redirect:
		m.waiting = nil
		cmd := m.enter(RouteLogin, nil)
		m.setFlash("Please log in to continue.", false)
		return cmd
	default:
		m.waiting = nil
		return m.enter(Route(decision.To), payload)
	}
}

// enter switches to route and prepares its page. Late responses for the page
// being left are discarded.
func (m *Model) enter(to Route, payload any) tea.Cmd {
	if m.route != to {
		m.requests.Forget(string(m.route))
	}
	m.route = to
	m.flash = flash{}

	switch to {
	case RouteLogin:
		m.login = newLoginForm()
	case RouteSignup:
		m.signup = newSignupForm()
	case RouteCatalog:
		if len(m.catalog.results) == 0 {
			m.catalog.input.Focus()
		}
	case RouteBrowse:
		return m.searchAvailable()
	case RouteMyBooks:
		m.snapshot = m.store.Snapshot()
		m.mybooks.clamp(m.snapshot)
		return m.refreshDashboard()
	case RouteAddCopy:
		var book lending.Book
		if !decodePayload(payload, &book) || book.ExternalID() == "" {
			cmd := m.enter(RouteCatalog, nil)
			m.setFlash("Choose a book from the catalog first.", true)
			return cmd
		}
		m.addCopy = newAddCopyPage(book, m.prefs.DefaultMaxDuration)
	case RouteReservation:
		var p reservePayload
		if !decodePayload(payload, &p) || p.Copy.ID == "" {
			cmd := m.enter(RouteBrowse, nil)
			m.setFlash("Choose a copy to borrow first.", true)
			return cmd
		}
		m.reserve = newReservePage(p, m.prefs.DefaultLoanDays)
	case RouteEditReservation:
		var r lending.Reservation
		if !decodePayload(payload, &r) || r.ID == "" {
			cmd := m.enter(RouteMyBooks, nil)
			m.setFlash("Choose a reservation to edit first.", true)
			return cmd
		}
		m.edit = newEditPage(r)
	case RouteActivity:
		return m.loadActivity()
	}
	return nil
}

// currentPayload returns the payload that rebuilds the current page.
func (m *Model) currentPayload() any {
	switch m.route {
	case RouteAddCopy:
		return m.addCopy.book
	case RouteReservation:
		return reservePayload{Book: m.reserve.book, Copy: m.reserve.copy}
	case RouteEditReservation:
		return m.edit.res
	}
	return nil
}

// back leaves the current page for its parent.
func (m *Model) back() tea.Cmd {
	switch m.route {
	case RouteAddCopy, RouteLogin:
		return m.navigate(RouteCatalog, nil)
	case RouteSignup:
		return m.navigate(RouteLogin, nil)
	case RouteReservation:
		return m.navigate(RouteBrowse, nil)
	case RouteEditReservation:
		return m.navigate(RouteMyBooks, nil)
	}
	return nil
}

// enforceSession redirects away from a protected page once the session has
// ended underneath it, e.g. after the poller saw an expired credential.
func (m *Model) enforceSession() tea.Cmd {
	if m.waiting != nil || m.gate.IsPublic(string(m.route)) {
		return nil
	}
	if m.session.Status() != session.StatusAnonymous {
		return nil
	}
	m.store.Reset()
	m.snapshot = state.Snapshot{}
	cmd := m.navigate(m.route, m.currentPayload())
	m.setFlash(lending.Message(lending.ErrAuthExpired), true)
	return cmd
}

// sessionExpired signs out and sends the user to login, remembering where
// they were.
func (m *Model) sessionExpired() tea.Cmd {
	if err := m.session.Logout(); err != nil {
		m.logger.Error("clear credential failed", "error", err)
	}
	m.store.Reset()
	m.snapshot = state.Snapshot{}
	cmd := m.navigate(m.route, m.currentPayload())
	m.setFlash(lending.Message(lending.ErrAuthExpired), true)
	return cmd
}

// failed reports err. An expired session redirects to login.
func (m *Model) failed(op string, err error) tea.Cmd {
	if lending.Classify(err) == lending.KindAuthExpired {
		m.logger.Info("session expired", "op", op)
		return m.sessionExpired()
	}
	m.logger.Warn("request failed", "op", op, "kind", lending.Classify(err).String(), "error", err)
	m.setFlash(lending.Message(err), true)
	return nil
}

func (m *Model) toggleSession() tea.Cmd {
	if m.session.Status() != session.StatusAuthenticated {
		return m.navigate(RouteLogin, nil)
	}
	if err := m.session.Logout(); err != nil {
		m.logger.Error("clear credential failed", "error", err)
	}
	m.store.Reset()
	m.snapshot = state.Snapshot{}
	var cmd tea.Cmd
	if !m.gate.IsPublic(string(m.route)) {
		cmd = m.navigate(RouteCatalog, nil)
	}
	m.setFlash("Signed out.", false)
	return cmd
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = flash{text: text, isErr: isErr}
}

// refreshDashboard reloads the signed-in user's copies and reservations.
func (m *Model) refreshDashboard() tea.Cmd {
	if m.refresh == nil || m.session.Status() != session.StatusAuthenticated {
		return nil
	}
	m.mybooks.loading = true
	ctx, refresh := m.ctx, m.refresh
	return func() tea.Msg {
		return dashboardMsg{err: refresh(ctx)}
	}
}

func (m Model) handleDashboard(msg dashboardMsg) (tea.Model, tea.Cmd) {
	m.mybooks.loading = false
	m.snapshot = m.store.Snapshot()
	m.mybooks.clamp(m.snapshot)
	if msg.err == nil || errors.Is(msg.err, context.Canceled) {
		return m, nil
	}
	if m.route != RouteMyBooks && lending.Classify(msg.err) != lending.KindAuthExpired {
		return m, nil
	}
	cmd := m.failed("refresh", msg.err)
	return m, cmd
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Client == nil || opts.Session == nil {
		return fmt.Errorf("ui requires an api client and a session")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
