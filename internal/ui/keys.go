package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application. Single-letter
// bindings apply only while no text field has focus.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Retry      key.Binding
	Session    key.Binding

	// Route switching
	GoCatalog  key.Binding
	GoBrowse   key.Binding
	GoMyBooks  key.Binding
	GoActivity key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	Search   key.Binding

	// Actions
	Confirm key.Binding
	Add     key.Binding
	Delete  key.Binding
	Edit    key.Binding
	Signup  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Retry / refresh"),
		),
		Session: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Log in / log out"),
		),

		GoCatalog: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Catalog search"),
		),
		GoBrowse: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Browse copies"),
		),
		GoMyBooks: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "My books"),
		),
		GoActivity: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Activity"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next field / pane"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous field / pane"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Select / submit"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add a copy"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Delete / cancel"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit reservation"),
		),
		Signup: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "Create an account"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.GoCatalog, k.GoBrowse, k.GoMyBooks, k.GoActivity, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom, k.Tab, k.Search},
		{k.Confirm, k.Add, k.Delete, k.Edit, k.Retry},
		{k.Session, k.Signup, k.CycleTheme, k.Help, k.Quit},
	}
}
