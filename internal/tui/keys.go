package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all dashboard key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding
	NextPage  key.Binding
	Refresh   key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	PrevPage key.Binding
	NextPg   key.Binding
	Enter    key.Binding

	// Query
	Search   key.Binding
	Sort     key.Binding
	Reverse  key.Binding
	Region   key.Binding
	MinHours key.Binding

	// Actions
	Select         key.Binding
	DeleteSelected key.Binding
	DeleteAll      key.Binding
	Upload         key.Binding
	Confirm        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear/close"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "dashboard/jobs"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "pgup"),
			key.WithHelp("←", "prev page"),
		),
		NextPg: key.NewBinding(
			key.WithKeys("right", "pgdown"),
			key.WithHelp("→", "next page"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),

		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Sort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort column"),
		),
		Reverse: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "sort direction"),
		),
		Region: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "cycle region"),
		),
		MinHours: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "toggle >48h"),
		),

		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "select"),
		),
		DeleteSelected: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete selected"),
		),
		DeleteAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "delete all"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "upload report"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Upload, k.Search, k.Sort, k.MinHours, k.NextPage, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPg, k.Enter},
		{k.Search, k.Sort, k.Reverse, k.Region, k.MinHours},
		{k.Select, k.DeleteSelected, k.DeleteAll, k.Upload, k.Refresh},
		{k.NextPage, k.Escape, k.Help, k.Quit, k.ForceQuit},
	}
}
