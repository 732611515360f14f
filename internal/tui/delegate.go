package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// row adapts a todo shadow to bubbles/list.Item.
type row struct {
	todo    model.Todo
	pending bool
	frame   string // spinner frame while a change is in flight
}

func (r row) Title() string       { return r.todo.Name }
func (r row) Description() string { return "" }
func (r row) FilterValue() string { return r.todo.Name }

// rowDelegate renders one todo per line.
type rowDelegate struct{}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	th := ui.Current()

	name := ui.Truncate(r.todo.Name, m.Width()-24)
	if r.todo.Done() {
		name = th.Done.Render(name)
	}
	mark := " "
	if r.pending {
		mark = th.Pending.Render(r.frame)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = th.Selected.Render(">") + " "
	}
	fmt.Fprintf(w, "%s%s %s %s  %s", prefix, ui.Checkbox(r.todo), name, mark, ui.Badge(r.todo))
}
