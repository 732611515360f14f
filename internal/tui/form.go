package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

type formMode int

const (
	formCreate formMode = iota
	formEdit
)

type formResult int

const (
	formOpen formResult = iota
	formSubmit
	formCancel
)

const (
	fieldName = iota
	fieldStatus
	fieldCount
)

// form is the create/edit sub-form. It validates locally and reports
// the outcome through result; the list view performs the request.
type form struct {
	mode   formMode
	base   model.Todo
	name   textinput.Model
	done   bool
	focus  int
	keys   keyMap
	help   help.Model
	errs   map[string]string
	err    string
	busy   bool
	result formResult
	todo   model.Todo // normalised record, set on submit
	now    func() time.Time
}

func newForm(mode formMode, base model.Todo, keys keyMap, now func() time.Time) form {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 0
	ti.SetValue(base.Name)
	ti.CursorEnd()
	ti.Focus()

	return form{
		mode: mode,
		base: base,
		name: ti,
		done: base.Done(),
		keys: keys,
		help: help.New(),
		now:  now,
	}
}

func (f form) Update(msg tea.Msg) (form, tea.Cmd) {
	if f.busy {
		return f, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		f.name, cmd = f.name.Update(msg)
		return f, cmd
	}

	switch {
	case key.Matches(km, f.keys.Cancel):
		f.result = formCancel
		return f, nil
	case key.Matches(km, f.keys.Submit):
		f.submit()
		return f, nil
	case key.Matches(km, f.keys.NextField):
		f.focus = (f.focus + 1) % fieldCount
		if f.focus == fieldName {
			cmd := f.name.Focus()
			return f, cmd
		}
		f.name.Blur()
		return f, nil
	}

	if f.focus == fieldStatus {
		if km.String() == " " || km.String() == "x" {
			f.done = !f.done
		}
		return f, nil
	}

	var cmd tea.Cmd
	f.name, cmd = f.name.Update(msg)
	delete(f.errs, "name")
	return f, cmd
}

// submit validates the fields and, when valid, flags the form for sending.
func (f *form) submit() {
	f.errs = nil
	f.err = ""

	c := model.CandidateFrom(f.base)
	name := f.name.Value()
	c.Name = &name
	status := model.StatusIncomplete
	if f.done {
		status = model.StatusCompleted
	}
	c.Status = &status

	now := f.now()
	if f.mode == formEdit {
		c.UpdateAt = &now
	} else {
		c.CreatedAt, c.UpdateAt = nil, nil
	}

	t, err := model.Normalize(c, now)
	if err != nil {
		f.setError(err)
		return
	}
	t.ID = f.base.ID
	f.todo = t
	f.busy = true
	f.result = formSubmit
}

// setError shows err next to the fields it names, or as a form-level line.
func (f *form) setError(err error) {
	f.busy = false
	f.result = formOpen

	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		var ae *api.Error
		if errors.As(err, &ae) {
			ve = ae.ValidationError()
		}
	}
	if ve != nil && len(ve.Fields) > 0 {
		f.errs = make(map[string]string, len(ve.Fields))
		for _, fe := range ve.Fields {
			if _, seen := f.errs[fe.Field]; !seen {
				f.errs[fe.Field] = fe.Message
			}
		}
		return
	}
	f.err = api.UserMessage(err)
}

func (f form) title() string {
	if f.mode == formEdit {
		return "Edit todo"
	}
	return "New todo"
}

func (f form) View() string {
	th := ui.Current()
	var b strings.Builder

	b.WriteString(th.Title.Render(f.title()))
	b.WriteString("\n")
	b.WriteString(f.name.View())
	if msg := f.errs["name"]; msg != "" {
		b.WriteString("\n" + th.Error.Render(msg))
	}

	box := th.BoxUnchecked
	if f.done {
		box = th.BoxChecked
	}
	status := box + " Completed"
	if f.focus == fieldStatus {
		status = th.Selected.Render(status)
	}
	b.WriteString("\n" + status)
	if msg := f.errs["status"]; msg != "" {
		b.WriteString("\n" + th.Error.Render(msg))
	}

	if f.err != "" {
		b.WriteString("\n" + th.Error.Render(f.err))
	}
	if f.busy {
		b.WriteString("\n" + th.Muted.Render("Saving..."))
	}
	b.WriteString("\n" + f.help.ShortHelpView(f.keys.formKeys()))

	return lipgloss.NewStyle().
		Border(th.Border).
		BorderForeground(th.BorderColor).
		Padding(0, 1).
		Render(b.String())
}
