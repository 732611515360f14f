// Package tui is the interactive todo list: server-side search and status
// filter, page-by-page loading, optimistic toggle/edit/delete and the
// create/edit form.
//
// All state is owned by the Bubble Tea Update loop. Requests run as
// commands and come back as messages; the search debouncer fires on its own
// goroutine and only posts a message to the program.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/filter"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/optimistic"
	"github.com/Makepad-fr/tada-client/internal/query"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// Notification texts.
const (
	msgCreated = "Create todo successfully"
	msgUpdated = "Update todo successfully"
	msgDeleted = "Delete todo successfully"
	msgEmpty   = "No results found."
	msgFailed  = "No results found"
)

// Backend is the remote todo API.
type Backend interface {
	query.Finder
	Create(ctx context.Context, t model.Todo) (model.Todo, error)
	Update(ctx context.Context, id string, t model.Todo) (model.Todo, error)
	Delete(ctx context.Context, id string) error
}

// Options configure the list view.
type Options struct {
	Backend  Backend
	Filter   model.Filter
	Debounce time.Duration
	Logger   *log.Logger

	// Clock and Now are replaced in tests.
	Clock filter.Clock
	Now   func() time.Time
}

// runtime holds what must be shared by every copy of Model: the program
// handle the debouncer posts to and the cancel func of the active fetch.
type runtime struct {
	send        func(tea.Msg)
	fetchCtx    context.Context
	fetchCancel context.CancelFunc
}

func (r *runtime) post(msg tea.Msg) {
	if r.send != nil {
		r.send(msg)
	}
}

// Messages.
type (
	fetchedMsg struct{ query.Result }

	searchSettledMsg struct{ value string }

	mutatedMsg struct {
		mutation optimistic.Mutation
		server   *model.Todo
		err      error
		fromForm bool
	}

	createdMsg struct {
		todo model.Todo
		err  error
	}
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx     context.Context
	backend Backend
	logger  *log.Logger
	now     func() time.Time
	rt      *runtime

	filters  *filter.Store
	debounce *filter.Debouncer
	query    *query.Query
	items    *optimistic.List
	pending  query.Request

	keys    keyMap
	list    list.Model
	search  textinput.Model
	spinner spinner.Model
	form    *form

	confirmID string
	notice    string
	width     int
	height    int
}

// New builds the model and issues the first page request, which Init runs.
func New(ctx context.Context, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	deb := filter.NewDebouncer(opts.Debounce)
	if opts.Clock != nil {
		deb = filter.NewDebouncerWithClock(opts.Debounce, opts.Clock)
	}
	if opts.Filter.Limit <= 0 {
		opts.Filter.Limit = model.DefaultLimit
	}

	keys := defaultKeys()
	th := ui.Current()

	l := list.New(nil, rowDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = th.Title
	l.Styles.HelpStyle = th.Help
	l.Styles.PaginationStyle = th.Help
	l.SetStatusBarItemName("todo", "todos")
	l.StatusMessageLifetime = 3 * time.Second
	l.KeyMap.Quit.SetEnabled(false)
	l.AdditionalShortHelpKeys = keys.listKeys
	l.AdditionalFullHelpKeys = keys.listKeys

	si := textinput.New()
	si.Prompt = "/ "
	si.Placeholder = "Search todos..."
	si.SetValue(opts.Filter.Search)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(th.Pending))

	m := Model{
		ctx:      ctx,
		backend:  opts.Backend,
		logger:   opts.Logger,
		now:      opts.Now,
		rt:       &runtime{},
		filters:  filter.NewStore(opts.Filter),
		debounce: deb,
		query:    query.New(),
		items:    optimistic.New(nil),
		keys:     keys,
		list:     l,
		search:   si,
		spinner:  sp,
		width:    80,
		height:   24,
	}
	m.pending = m.query.Reset(m.filters.State())
	m.resize()
	m.refresh()
	return m
}

// SetSender connects the debouncer to a running program.
func (m Model) SetSender(send func(tea.Msg)) { m.rt.send = send }

// Filter returns the active filter.
func (m Model) Filter() model.Filter { return m.filters.State() }

// Close stops the debouncer and cancels the active fetch.
func (m Model) Close() {
	m.debounce.Stop()
	if m.rt.fetchCancel != nil {
		m.rt.fetchCancel()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(m.pending, true))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.refresh()
		}
		return m, cmd

	case fetchedMsg:
		return m.onFetched(msg)

	case searchSettledMsg:
		return m.applyFilter(filter.Search(msg.value))

	case mutatedMsg:
		return m.onMutated(msg)

	case createdMsg:
		return m.onCreated(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Close()
			return m, tea.Quit
		}
		switch {
		case m.form != nil:
			return m.updateForm(msg)
		case m.confirmID != "":
			return m.updateConfirm(msg)
		case m.search.Focused():
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}

	if m.form != nil {
		f, cmd := m.form.Update(msg)
		m.form = &f
		return m, cmd
	}
	if m.search.Focused() {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Search):
		m.resize()
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Status):
		return m.applyFilter(filter.Status(nextStatus(m.filters.State().Status)))

	case key.Matches(msg, m.keys.More):
		return m.loadMore()

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.reset(m.query.Refetch())
		return m, cmd

	case key.Matches(msg, m.keys.Add):
		f := newForm(formCreate, model.Todo{}, m.keys, m.now)
		m.form = &f
		m.resize()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		f := newForm(formEdit, t, m.keys, m.now)
		m.form = &f
		m.resize()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Toggle):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		want := t.Toggled()
		want.UpdateAt = m.now()
		mu, err := m.items.Apply(t.ID, want)
		if err != nil {
			cmd := m.notify(err.Error(), true)
			return m, cmd
		}
		m.refresh()
		return m, m.mutate(mu, false)

	case key.Matches(msg, m.keys.Delete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.confirmID = t.ID
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirmID
	switch {
	case key.Matches(msg, m.keys.Yes):
		m.confirmID = ""
		mu, err := m.items.Delete(id)
		if err != nil {
			cmd := m.notify(err.Error(), true)
			return m, cmd
		}
		m.refresh()
		return m, m.mutate(mu, false)
	case key.Matches(msg, m.keys.No):
		m.confirmID = ""
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.search.Blur()
		m.debounce.Stop()
		return m.applyFilter(filter.Search(m.search.Value()))
	case "esc":
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		rt := m.rt
		m.debounce.Trigger(func() { rt.post(searchSettledMsg{value: v}) })
	}
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f, cmd := m.form.Update(msg)
	m.form = &f

	switch f.result {
	case formCancel:
		m.form = nil
		m.resize()
		return m, nil
	case formSubmit:
		m.form.result = formOpen
		if f.mode == formCreate {
			return m, m.create(f.todo)
		}
		mu, err := m.items.Apply(f.base.ID, f.todo)
		if err != nil {
			m.form.setError(err)
			return m, nil
		}
		m.refresh()
		return m, m.mutate(mu, true)
	}
	return m, cmd
}

// applyFilter merges p and restarts the query when the filter changed.
func (m Model) applyFilter(p filter.Patch) (tea.Model, tea.Cmd) {
	f, changed := m.filters.Set(p)
	if !changed {
		return m, nil
	}
	m.logger.Debug("filter changed", "search", f.Search, "status", f.Status, "limit", f.Limit)
	cmd := m.reset(m.query.Reset(f))
	return m, cmd
}

// reset clears the rendered list for a new query run and fetches page 1.
// Items with a change in flight stay tracked until page 1 brings them back.
func (m *Model) reset(req query.Request) tea.Cmd {
	m.pending = req
	m.items.Replace(m.query.Items())
	m.refresh()
	return m.fetch(req, true)
}

func (m Model) loadMore() (tea.Model, tea.Cmd) {
	req, ok := m.query.Next()
	if !ok {
		return m, nil
	}
	m.refresh()
	cmd := m.fetch(req, false)
	return m, cmd
}

// fetch runs req off the loop. A fresh run cancels the previous one.
func (m *Model) fetch(req query.Request, fresh bool) tea.Cmd {
	if fresh || m.rt.fetchCtx == nil {
		if m.rt.fetchCancel != nil {
			m.rt.fetchCancel()
		}
		m.rt.fetchCtx, m.rt.fetchCancel = context.WithCancel(m.ctx)
	}
	ctx, backend := m.rt.fetchCtx, m.backend
	return func() tea.Msg {
		return fetchedMsg{query.Fetch(ctx, backend, req)}
	}
}

func (m Model) onFetched(msg fetchedMsg) (tea.Model, tea.Cmd) {
	if !m.query.Resolve(msg.Result) {
		m.logger.Debug("discarding stale page", "generation", msg.Generation, "page", msg.Page)
		return m, nil
	}
	m.items.Replace(m.query.Items())
	m.refresh()

	if msg.Err != nil && !api.IsCanceled(msg.Err) {
		m.logger.Warn("fetch failed", "page", msg.Page, "err", msg.Err)
		cmd := m.notify(api.UserMessage(msg.Err), true)
		return m, cmd
	}
	return m, nil
}

func (m Model) mutate(mu optimistic.Mutation, fromForm bool) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		if mu.Kind == optimistic.KindDelete {
			return mutatedMsg{mutation: mu, err: backend.Delete(ctx, mu.ID), fromForm: fromForm}
		}
		t, err := backend.Update(ctx, mu.ID, mu.Want)
		if err != nil {
			return mutatedMsg{mutation: mu, err: err, fromForm: fromForm}
		}
		return mutatedMsg{mutation: mu, server: &t, fromForm: fromForm}
	}
}

func (m Model) onMutated(msg mutatedMsg) (tea.Model, tea.Cmd) {
	mu := msg.mutation
	err := msg.err
	if mu.Kind == optimistic.KindDelete && errors.Is(err, api.ErrNotFound) {
		// Already gone on the server.
		err = nil
	}

	if err != nil {
		m.logger.Warn("change failed", "id", mu.ID, "kind", mu.Kind, "err", err)
		m.items.Fail(mu)
		m.refresh()
		if msg.fromForm && m.form != nil && m.form.base.ID == mu.ID {
			m.form.setError(err)
			if !errors.Is(err, api.ErrValidation) {
				cmd := m.notify(api.UserMessage(err), true)
				return m, cmd
			}
			return m, nil
		}
		cmd := m.notify(api.UserMessage(err), true)
		return m, cmd
	}

	m.items.Confirm(mu, msg.server)
	m.refresh()
	if mu.Kind == optimistic.KindDelete {
		cmd := m.notify(msgDeleted, false)
		return m, cmd
	}
	if msg.fromForm && m.form != nil && m.form.base.ID == mu.ID {
		m.form = nil
		m.resize()
	}
	cmd := m.notify(msgUpdated, false)
	return m, cmd
}

func (m Model) create(t model.Todo) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		out, err := backend.Create(ctx, t)
		return createdMsg{todo: out, err: err}
	}
}

func (m Model) onCreated(msg createdMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("create failed", "err", msg.err)
		if m.form != nil && m.form.mode == formCreate {
			m.form.setError(msg.err)
			return m, nil
		}
		cmd := m.notify(api.UserMessage(msg.err), true)
		return m, cmd
	}
	m.logger.Debug("created", "id", msg.todo.ID)
	if m.form != nil && m.form.mode == formCreate {
		m.form = nil
		m.resize()
	}
	note := m.notify(msgCreated, false)
	fetch := m.reset(m.query.Refetch())
	return m, tea.Batch(note, fetch)
}

// notify shows a transient status line.
func (m *Model) notify(text string, failed bool) tea.Cmd {
	m.notice = text
	th := ui.Current()
	if failed {
		text = th.Error.Render(th.SymFail + " " + text)
	} else {
		text = th.Success.Render(th.SymOK + " " + text)
	}
	return m.list.NewStatusMessage(text)
}

// refresh rebuilds list rows from the optimistic list.
func (m *Model) refresh() {
	visible := m.items.Visible()
	rows := make([]list.Item, 0, len(visible))
	frame := strings.TrimSpace(m.spinner.View())
	for _, t := range visible {
		e, _ := m.items.Entry(t.ID)
		rows = append(rows, row{todo: t, pending: e.State != optimistic.Synced, frame: frame})
	}
	idx := m.list.Index()
	m.list.SetItems(rows)
	if idx >= len(rows) && len(rows) > 0 {
		m.list.Select(len(rows) - 1)
	}
	m.list.Title = ui.Header(visible, m.filters.State())
}

func (m *Model) resize() {
	w, h := m.width-4, m.height-6
	if m.form != nil {
		h -= 7
	}
	if w < 20 {
		w = 20
	}
	if h < 5 {
		h = 5
	}
	m.list.SetSize(w, h)
}

func (m Model) busy() bool {
	if m.query.Loading() {
		return true
	}
	for _, t := range m.items.Visible() {
		if e, ok := m.items.Entry(t.ID); ok && e.State != optimistic.Synced {
			return true
		}
	}
	return false
}

func (m Model) selected() (model.Todo, bool) {
	r, ok := m.list.SelectedItem().(row)
	if !ok {
		return model.Todo{}, false
	}
	return r.todo, true
}

func nextStatus(s int) int {
	opts := model.StatusOptions
	for i, o := range opts {
		if o.Value == s {
			return opts[(i+1)%len(opts)].Value
		}
	}
	return model.StatusAll
}

func (m Model) View() string {
	th := ui.Current()
	var b strings.Builder

	b.WriteString(m.search.View())
	b.WriteString("   ")
	b.WriteString(m.facetView())
	b.WriteString("\n\n")

	switch {
	case m.query.Status() == query.Loading && m.query.Pages() == 0:
		b.WriteString(m.spinner.View() + " Loading...")
	case m.query.Status() == query.Errored && m.items.Len() == 0:
		b.WriteString(th.Muted.Render(msgFailed))
		b.WriteString("\n" + th.Error.Render(api.UserMessage(m.query.Err())))
	case m.items.Len() == 0:
		b.WriteString(th.Title.Render(m.list.Title) + "\n\n")
		b.WriteString(th.Muted.Render(msgEmpty))
	default:
		b.WriteString(m.list.View())
	}

	if foot := m.footer(); foot != "" {
		b.WriteString("\n" + foot)
	}
	if m.form != nil {
		b.WriteString("\n" + m.form.View())
	}
	return ui.Frame(b.String())
}

func (m Model) facetView() string {
	th := ui.Current()
	current := m.filters.State().Status
	parts := make([]string, 0, len(model.StatusOptions))
	for _, o := range model.StatusOptions {
		if o.Value == current {
			parts = append(parts, th.Accent.Render("["+o.Label+"]"))
		} else {
			parts = append(parts, th.Muted.Render(o.Label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) footer() string {
	th := ui.Current()
	switch {
	case m.confirmID != "":
		name := m.confirmID
		if e, ok := m.items.Entry(m.confirmID); ok {
			name = e.Shadow.Name
		}
		return th.Error.Render(fmt.Sprintf("Delete %q? (y/n)", ui.Truncate(name, 40)))
	case m.query.FetchingNext():
		return m.spinner.View() + " Loading more..."
	case m.query.Status() == query.Errored && m.items.Len() > 0:
		return th.Error.Render(api.UserMessage(m.query.Err())) + th.Muted.Render("  (m to retry, r to reload)")
	case m.query.HasMore():
		return th.Accent.Render("Load more") + th.Muted.Render(" (m)")
	}
	return ""
}
