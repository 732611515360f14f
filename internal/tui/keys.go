package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle  key.Binding
	Delete  key.Binding
	Add     key.Binding
	Edit    key.Binding
	Search  key.Binding
	Status  key.Binding
	More    key.Binding
	Refresh key.Binding
	Quit    key.Binding

	Yes key.Binding
	No  key.Binding

	Submit    key.Binding
	Cancel    key.Binding
	NextField key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:  key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Status:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		More:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),

		Yes: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "delete")),
		No:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "keep")),

		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		NextField: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	}
}

// listKeys extends the list's own help.
func (k keyMap) listKeys() []key.Binding {
	return []key.Binding{k.Toggle, k.Add, k.Edit, k.Delete, k.Search, k.Status, k.More, k.Refresh}
}

func (k keyMap) formKeys() []key.Binding {
	return []key.Binding{k.Submit, k.NextField, k.Cancel}
}

func (k keyMap) confirmKeys() []key.Binding {
	return []key.Binding{k.Yes, k.No}
}
