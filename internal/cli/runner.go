package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/auth"
	"github.com/Makepad-fr/tada-client/internal/config"
	"github.com/Makepad-fr/tada-client/internal/devserver"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/query"
	"github.com/Makepad-fr/tada-client/internal/store/jsonstore"
	"github.com/Makepad-fr/tada-client/internal/tui"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group  bool // list grouped by pending/done
	Config *config.Config
	Logger *log.Logger
	Auth   *auth.Store

	Out io.Writer
	Err io.Writer
	In  io.Reader

	// SessionFile keeps the list view's last search and status filter.
	// Empty disables it.
	SessionFile string

	// Interactive runs the list view; tui.Run when nil.
	Interactive func(ctx context.Context, opts tui.Options) (model.Filter, error)
	// Now is time.Now when nil.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Config == nil {
		o.Config = config.Defaults()
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Interactive == nil {
		o.Interactive = tui.Run
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	if len(args) == 0 {
		PrintHelp(opt.Err)
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(opt.Out)
		return 0

	case "ls":
		return doInteractive(ctx, opt)

	case "find":
		return doFind(ctx, a, opt)

	case "add":
		if len(a) == 0 {
			ui.Fail(opt.Err, "usage: todo add <name...>")
			return 2
		}
		return doAdd(ctx, strings.Join(a, " "), opt)

	case "done":
		if len(a) != 1 {
			ui.Fail(opt.Err, "usage: todo done <id>")
			return 2
		}
		return doToggle(ctx, a[0], opt)

	case "edit":
		if len(a) < 2 {
			ui.Fail(opt.Err, "usage: todo edit <id> <name...>")
			return 2
		}
		return doEdit(ctx, a[0], strings.Join(a[1:], " "), opt)

	case "rm":
		if len(a) != 1 {
			ui.Fail(opt.Err, "usage: todo rm <id>")
			return 2
		}
		return doRemove(ctx, a[0], opt)

	case "auth":
		return doAuth(a, opt)

	case "serve":
		return doServe(ctx, a, opt)
	}

	ui.Fail(opt.Err, "unknown subcommand: "+cmd)
	fmt.Fprintln(opt.Err)
	PrintHelp(opt.Err)
	return 2
}

func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `todo - terminal client for a todo REST API

Usage:
  todo [flags] <subcommand> [args]

Subcommands:
  ls                    Interactive list (search, filter, edit)
  find [flags]          Print one page of todos
      --search <text>   Case-insensitive name search
      --status <s>      all | done | todo
      --limit <n>       Page size
      --page <n>        1-based page
      --all             Fetch every page
  add <name...>         Create a todo
  done <id>             Toggle completed for a todo (id or unique prefix)
  edit <id> <name...>   Rename a todo
  rm <id>               Delete a todo
  auth login [token]    Save an API token (reads stdin when omitted)
  auth logout           Forget the saved token
  auth status           Show where the token comes from
  auth whoami           Decode the token's JWT claims, if any
  serve [--listen addr] Run an in-memory development API

Flags:
  --api <url>           API base URL
  --config <file>       Extra config file
  --theme <name>        classic | neon | mono
  --log-level <level>   debug | info | warn | error
  --group               Group find output by pending/done

Examples:
  todo add "Buy milk"
  todo find --search milk --status todo
  todo done 3f2a9c1e
  todo serve --listen :8080
`)
}

// -------------- subcommand impls ----------------

func newClient(opt Options) *api.Client {
	cfg := opt.Config
	opts := []api.Option{
		api.WithTimeout(cfg.Timeout.Duration),
		api.WithLogger(opt.Logger),
		api.WithSort(cfg.SortBy, cfg.Order),
	}
	if opt.Auth != nil {
		opts = append(opts, api.WithToken(opt.Auth.Token))
	}
	return api.New(cfg.APIURL, opts...)
}

// session is the persisted part of the list view's filter.
type session struct {
	Search string `json:"search"`
	Status int    `json:"status"`
}

func doInteractive(ctx context.Context, opt Options) int {
	f := model.DefaultFilter()
	f.Limit = opt.Config.PageSize

	var file jsonstore.File[session]
	if opt.SessionFile != "" {
		file = jsonstore.File[session]{Path: opt.SessionFile, Perm: 0o600}
		if s, found, err := file.Load(); err != nil {
			opt.Logger.Warn("ignoring session", "err", err)
		} else if found {
			f.Search = s.Search
			if s.Status >= model.StatusAll && s.Status <= model.StatusCompleted {
				f.Status = s.Status
			}
		}
	}

	last, err := opt.Interactive(ctx, tui.Options{
		Backend:  newClient(opt),
		Filter:   f,
		Debounce: opt.Config.Debounce.Duration,
		Logger:   opt.Logger,
	})
	if err != nil {
		ui.Fail(opt.Err, "ls: "+err.Error())
		return 1
	}
	if opt.SessionFile != "" {
		if err := file.Save(session{Search: last.Search, Status: last.Status}); err != nil {
			opt.Logger.Warn("saving session", "err", err)
		}
	}
	return 0
}

func doFind(ctx context.Context, args []string, opt Options) int {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(opt.Err)
	search := fs.String("search", "", "case-insensitive name search")
	status := fs.String("status", "all", "all | done | todo")
	limit := fs.Int("limit", opt.Config.PageSize, "page size")
	page := fs.Int("page", 1, "1-based page")
	all := fs.Bool("all", false, "fetch every page")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	st, ok := model.ParseStatus(*status)
	if !ok {
		ui.Fail(opt.Err, "find: unknown status: "+*status)
		return 2
	}
	if *limit <= 0 || *page <= 0 {
		ui.Fail(opt.Err, "find: --limit and --page must be positive")
		return 2
	}

	f := model.Filter{Search: *search, Status: st, Limit: *limit}
	client := newClient(opt)

	var (
		items   []model.Todo
		hasMore bool
		err     error
	)
	if *all {
		items, err = fetchAll(ctx, client, f)
	} else {
		items, err = client.Find(ctx, query.Request{Filter: f, Page: *page}.Params())
		hasMore = len(items) >= f.Limit
	}
	if err != nil {
		ui.Fail(opt.Err, "find: "+api.UserMessage(err))
		opt.Logger.Debug("find failed", "err", err)
		return 1
	}

	d, p := ui.Stats(items)
	th := ui.Current()
	var lines []string
	lines = append(lines, ui.Header(items, f))
	lines = append(lines, th.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")
	if opt.Group {
		lines = append(lines, ui.GroupLines(items)...)
	} else {
		lines = append(lines, ui.FlatLines(items)...)
	}
	if hasMore {
		lines = append(lines, "")
		lines = append(lines, th.Muted.Render(fmt.Sprintf("Load more: `todo find --page %d`", *page+1)))
	}
	ui.Panel(opt.Out, lines)
	return 0
}

// fetchAll walks pages in order until a short page.
func fetchAll(ctx context.Context, f query.Finder, flt model.Filter) ([]model.Todo, error) {
	q := query.New()
	req := q.Reset(flt)
	for {
		if !q.Resolve(query.Fetch(ctx, f, req)) {
			return nil, errors.New("page out of order")
		}
		if err := q.Err(); err != nil {
			return nil, err
		}
		next, ok := q.Next()
		if !ok {
			return q.Items(), nil
		}
		req = next
	}
}

// resolve finds the todo whose id equals ref or uniquely starts with it.
func resolve(ctx context.Context, f query.Finder, ref string) (model.Todo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Todo{}, fmt.Errorf("empty id")
	}
	items, err := fetchAll(ctx, f, model.Filter{Status: model.StatusAll, Limit: 100})
	if err != nil {
		return model.Todo{}, err
	}
	var matches []model.Todo
	for _, it := range items {
		if it.ID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return model.Todo{}, fmt.Errorf("no todo with id %s: %w", ref, api.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return model.Todo{}, fmt.Errorf("id %s is ambiguous (%d matches)", ref, len(matches))
}

func doAdd(ctx context.Context, name string, opt Options) int {
	now := opt.Now()
	t, err := model.Normalize(model.Candidate{Name: &name}, now)
	if err != nil {
		printValidation(opt.Err, "add", err)
		return 2
	}
	created, err := newClient(opt).Create(ctx, t)
	if err != nil {
		printValidation(opt.Err, "add", err)
		return exitFor(err)
	}
	ui.OK(opt.Out, "Create todo successfully")
	ui.Hint(opt.Out, "id "+created.ID)
	return 0
}

func doToggle(ctx context.Context, ref string, opt Options) int {
	client := newClient(opt)
	t, err := resolve(ctx, client, ref)
	if err != nil {
		ui.Fail(opt.Err, "done: "+api.UserMessage(err))
		ui.Hint(opt.Err, "Hint: run `todo find` to see ids")
		return exitFor(err)
	}
	want := t.Toggled()
	want.UpdateAt = opt.Now()
	stored, err := client.Update(ctx, t.ID, want)
	if err != nil {
		ui.Fail(opt.Err, "done: "+api.UserMessage(err))
		return exitFor(err)
	}
	ui.OK(opt.Out, "Update todo successfully")
	printStored(opt.Out, stored)
	return 0
}

func doEdit(ctx context.Context, ref, name string, opt Options) int {
	client := newClient(opt)
	t, err := resolve(ctx, client, ref)
	if err != nil {
		ui.Fail(opt.Err, "edit: "+api.UserMessage(err))
		return exitFor(err)
	}

	c := model.CandidateFrom(t)
	c.Name = &name
	now := opt.Now()
	c.UpdateAt = &now
	want, err := model.Normalize(c, now)
	if err != nil {
		printValidation(opt.Err, "edit", err)
		return 2
	}
	stored, err := client.Update(ctx, t.ID, want)
	if err != nil {
		printValidation(opt.Err, "edit", err)
		return exitFor(err)
	}
	ui.OK(opt.Out, "Update todo successfully")
	printStored(opt.Out, stored)
	return 0
}

func doRemove(ctx context.Context, ref string, opt Options) int {
	client := newClient(opt)
	t, err := resolve(ctx, client, ref)
	if err != nil {
		ui.Fail(opt.Err, "rm: "+api.UserMessage(err))
		return exitFor(err)
	}
	if err := client.Delete(ctx, t.ID); err != nil {
		ui.Fail(opt.Err, "rm: "+api.UserMessage(err))
		return exitFor(err)
	}
	ui.OK(opt.Out, "Delete todo successfully")
	return 0
}

func doAuth(args []string, opt Options) int {
	if len(args) == 0 {
		ui.Fail(opt.Err, "usage: todo auth <login|logout|status>")
		return 2
	}
	store := opt.Auth
	if store == nil {
		s, err := auth.DefaultStore()
		if err != nil {
			ui.Fail(opt.Err, "auth: "+err.Error())
			return 1
		}
		store = s
	}

	switch args[0] {
	case "login":
		token := strings.Join(args[1:], " ")
		if token == "" {
			fmt.Fprint(opt.Out, "Token: ")
			line, err := bufio.NewReader(opt.In).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				ui.Fail(opt.Err, "auth: read token: "+err.Error())
				return 1
			}
			token = line
		}
		if err := store.Set(token, nil); err != nil {
			ui.Fail(opt.Err, "auth: "+err.Error())
			return 1
		}
		ui.OK(opt.Out, "token saved")
		return 0

	case "logout":
		if ti, _ := store.Get(); ti != nil && ti.Source == "env" {
			ui.OK(opt.Out, "token is provided by TADA_TOKEN env var (nothing to delete)")
			return 0
		}
		if err := store.Delete(); err != nil {
			ui.Fail(opt.Err, "auth: "+err.Error())
			return 1
		}
		ui.OK(opt.Out, "logged out")
		return 0

	case "status", "whoami":
		ti, err := store.Get()
		if err != nil {
			ui.Fail(opt.Err, "auth: "+err.Error())
			return 1
		}
		if ti == nil {
			ui.Fail(opt.Out, "not logged in")
			ui.Hint(opt.Out, "Run: todo auth login")
			return 1
		}
		if args[0] == "whoami" {
			if p, ok := auth.Payload(ti.Token); ok {
				fmt.Fprintln(opt.Out, "JWT payload:")
				fmt.Fprintln(opt.Out, p)
			} else {
				fmt.Fprintln(opt.Out, "Opaque token (cannot introspect locally).")
			}
			return 0
		}
		ui.OK(opt.Out, fmt.Sprintf("token %s (from %s)", mask(ti.Token), ti.Source))
		if ti.ExpiresAt != nil {
			ui.Hint(opt.Out, "expires: "+ti.ExpiresAt.UTC().Format(time.RFC3339))
		}
		ui.Hint(opt.Out, "env override: TADA_TOKEN")
		return 0
	}

	ui.Fail(opt.Err, "auth: unknown action: "+args[0])
	return 2
}

func doServe(ctx context.Context, args []string, opt Options) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(opt.Err)
	listen := fs.String("listen", opt.Config.Listen, "listen address")
	token := fs.String("token", "", "require this bearer token")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	srv := devserver.New(devserver.NewStore(),
		devserver.WithLogger(opt.Logger),
		devserver.WithToken(*token),
	)
	if err := devserver.ListenAndServe(ctx, *listen, srv.Handler(), opt.Logger); err != nil {
		ui.Fail(opt.Err, "serve: "+err.Error())
		return 1
	}
	return 0
}

// -------------- helpers --------------

// printValidation lists field errors one per line, or the error message.
// printStored shows the record as the server returned it.
func printStored(w io.Writer, t model.Todo) {
	ui.Hint(w, ui.TodoLine(t))
	if !t.UpdateAt.IsZero() {
		ui.Hint(w, "updated "+t.UpdateAt.Local().Format(time.DateTime))
	}
}

func printValidation(w io.Writer, op string, err error) {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		var ae *api.Error
		if errors.As(err, &ae) {
			ve = ae.ValidationError()
		}
	}
	if ve == nil || len(ve.Fields) == 0 {
		ui.Fail(w, op+": "+api.UserMessage(err))
		return
	}
	for _, fe := range ve.Fields {
		ui.Fail(w, op+": "+fe.Message)
	}
}

// exitFor maps an error to an exit code: 2 for bad input, 1 otherwise.
func exitFor(err error) int {
	if errors.Is(err, api.ErrValidation) {
		return 2
	}
	return 1
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
