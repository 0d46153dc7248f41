package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"smartsprint/internal/view"
)

// KeyMap defines the key bindings of the sprint UI. View shortcuts only
// apply while no form field has focus.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Next   key.Binding
	Prev   key.Binding

	Refresh key.Binding
	Logout  key.Binding
	Quit    key.Binding
	Abort   key.Binding

	// Row actions.
	Export   key.Binding
	Assign   key.Binding
	Complete key.Binding

	// System actions on the status view.
	Optimize key.Binding
	Balance  key.Binding
	Report   key.Binding
	Adjust   key.Binding

	Views map[view.View]key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("S-tab", "prev field")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	Abort:    key.NewBinding(key.WithKeys("ctrl+c")),
	Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export to jira")),
	Assign:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assign")),
	Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
	Optimize: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "optimize")),
	Balance:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "balance")),
	Report:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "save report")),
	Adjust:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "adjust priorities")),
	Views: map[view.View]key.Binding{
		view.Dashboard:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		view.Tickets:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "tickets")),
		view.Developers: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "developers")),
		view.Create:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "create")),
		view.Assign:     key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "assign")),
		view.Complete:   key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "complete")),
		view.Status:     key.NewBinding(key.WithKeys("7"), key.WithHelp("7", "status")),
		view.Document:   key.NewBinding(key.WithKeys("8"), key.WithHelp("8", "document")),
		view.Sprint:     key.NewBinding(key.WithKeys("9"), key.WithHelp("9", "sprint")),
		view.Save:       key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "save")),
	},
}

// navViews is the order of the navigation bar.
var navViews = []view.View{
	view.Dashboard, view.Tickets, view.Developers, view.Create, view.Assign,
	view.Complete, view.Status, view.Document, view.Sprint, view.Save,
}
