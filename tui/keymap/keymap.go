package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// Base contains the navigation and core bindings shared by storefront TUIs.
// Vim-style keys take precedence.
type Base struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	Quit    key.Binding
	Help    key.Binding
	Confirm key.Binding
	Back    key.Binding
	Refresh key.Binding
}

// NewBase creates a Base keymap with the default vim-style bindings.
func NewBase() Base {
	return Base{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("C-u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("C-d", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// Dashboard extends Base with the store dashboard actions.
type Dashboard struct {
	Base

	ViewLogs    key.Binding
	CloseLogs   key.Binding
	NewStore    key.Binding
	ShowSecrets key.Binding
}

// NewDashboard returns the default dashboard keymap.
func NewDashboard() Dashboard {
	return Dashboard{
		Base: NewBase(),
		ViewLogs: key.NewBinding(
			key.WithKeys("enter", "l"),
			key.WithHelp("enter", "view logs"),
		),
		CloseLogs: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close logs"),
		),
		NewStore: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new store"),
		),
		ShowSecrets: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "show password"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k Dashboard) ShortHelp() []key.Binding {
	return []key.Binding{k.ViewLogs, k.NewStore, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k Dashboard) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.ViewLogs, k.CloseLogs, k.NewStore, k.ShowSecrets, k.Refresh},
		{k.Confirm, k.Back, k.Help, k.Quit},
	}
}
