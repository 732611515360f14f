package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada-client/internal/auth"
	"github.com/Makepad-fr/tada-client/internal/config"
	"github.com/Makepad-fr/tada-client/internal/devserver"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/tui"
	"github.com/Makepad-fr/tada-client/internal/ui"
)

type harness struct {
	store *devserver.Store
	opt   Options
	out   *bytes.Buffer
	err   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ui.SetTheme("mono")
	t.Cleanup(func() { ui.SetTheme("classic") })

	store := devserver.NewStore()
	srv := httptest.NewServer(devserver.New(store).Handler())
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.APIURL = srv.URL
	cfg.PageSize = 2

	h := &harness{store: store, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	h.opt = Options{
		Config: cfg,
		Auth:   &auth.Store{Dir: t.TempDir(), Getenv: func(string) string { return "" }},
		Out:    h.out,
		Err:    h.err,
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) run(args ...string) int {
	h.out.Reset()
	h.err.Reset()
	return Run(context.Background(), args, h.opt)
}

func (h *harness) seed(t *testing.T, names ...string) []model.Todo {
	t.Helper()
	var out []model.Todo
	for _, n := range names {
		name := n
		td, err := h.store.Create(model.Candidate{Name: &name})
		require.NoError(t, err)
		out = append(out, td)
	}
	return out
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 2, h.run())
	assert.Contains(t, h.err.String(), "Usage:")

	assert.Equal(t, 0, h.run("help"))
	assert.Contains(t, h.out.String(), "Subcommands:")

	assert.Equal(t, 2, h.run("frobnicate"))
	assert.Contains(t, h.err.String(), "unknown subcommand: frobnicate")

	assert.Equal(t, 2, h.run("add"))
	assert.Equal(t, 2, h.run("done"))
	assert.Equal(t, 2, h.run("edit", "abc"))
	assert.Equal(t, 2, h.run("rm"))
}

func TestAddCreatesTodo(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("add", "Buy", "milk"))
	assert.Contains(t, h.out.String(), "ok Create todo successfully")

	items := h.store.Find(devserver.Query{Status: model.StatusAll, Page: 1, Limit: 10})
	require.Len(t, items, 1)
	assert.Equal(t, "Buy milk", items[0].Name)
	assert.Equal(t, model.StatusIncomplete, items[0].Status)
	assert.NotEmpty(t, items[0].ID)
	assert.Contains(t, h.out.String(), items[0].ID)
}

func TestAddRejectsInvalidName(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 2, h.run("add", "   "))
	assert.Contains(t, h.err.String(), "Name must be at least 1 characters.")

	assert.Equal(t, 2, h.run("add", strings.Repeat("x", 256)))
	assert.Contains(t, h.err.String(), "Name must be at most 255 characters.")
}

func TestFindPrintsPage(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Buy milk", "Walk dog", "Buy bread")

	require.Equal(t, 0, h.run("find", "--search", "buy"))
	out := h.out.String()
	assert.Contains(t, out, "Buy milk")
	assert.Contains(t, out, "Buy bread")
	assert.NotContains(t, out, "Walk dog")
	// Two matches fill a page of two.
	assert.Contains(t, out, "todo find --page 2")
}

func TestFindAllWalksPages(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a", "b", "c", "d", "e")

	require.Equal(t, 0, h.run("find", "--all"))
	out := h.out.String()
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		assert.Contains(t, out, "] "+n)
	}
	assert.NotContains(t, out, "--page")
}

func TestFindEmpty(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 0, h.run("find", "--status", "done"))
	assert.Contains(t, h.out.String(), "No results found.")
}

func TestFindBadFlags(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 2, h.run("find", "--status", "maybe"))
	assert.Contains(t, h.err.String(), "unknown status")
	assert.Equal(t, 2, h.run("find", "--limit", "0"))
	assert.Equal(t, 2, h.run("find", "--nope"))
}

func TestFindGrouped(t *testing.T) {
	h := newHarness(t)
	seeded := h.seed(t, "open one", "closed one")
	_, err := h.store.Update(seeded[1].ID, model.CandidateFrom(seeded[1].Toggled()))
	require.NoError(t, err)

	h.opt.Group = true
	require.Equal(t, 0, h.run("find"))
	out := h.out.String()
	assert.Less(t, strings.Index(out, "Incomplete"), strings.Index(out, "open one"))
	assert.Less(t, strings.Index(out, "Completed"), strings.Index(out, "closed one"))
}

func TestFindServerDown(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.APIURL = "http://127.0.0.1:1"
	h.opt.Config.Timeout = config.Duration{Duration: time.Second}

	assert.Equal(t, 1, h.run("find"))
	assert.Contains(t, h.err.String(), "Cannot reach the server")
}

func TestDoneTogglesByPrefix(t *testing.T) {
	h := newHarness(t)
	td := h.seed(t, "Buy milk")[0]

	require.Equal(t, 0, h.run("done", td.ID[:8]))
	assert.Contains(t, h.out.String(), "Update todo successfully")

	got, err := h.store.Get(td.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	require.Equal(t, 0, h.run("done", td.ID))
	got, err = h.store.Get(td.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIncomplete, got.Status)
}

func TestDonePrintsStoredRecord(t *testing.T) {
	store := devserver.NewStore()
	name := "Buy milk"
	td, err := store.Create(model.Candidate{Name: &name})
	require.NoError(t, err)

	// The server normalizes the name on update.
	backend := devserver.New(store).Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			backend.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Todo{
			ID:       td.ID,
			Name:     "BUY MILK",
			Status:   model.StatusCompleted,
			UpdateAt: time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		})
	}))
	defer srv.Close()

	h := newHarness(t)
	h.opt.Config.APIURL = srv.URL

	require.Equal(t, 0, h.run("done", td.ID))
	out := h.out.String()
	assert.Contains(t, out, "BUY MILK")
	assert.NotContains(t, out, "Buy milk")
	assert.Contains(t, out, "updated 2024-05-0")
}

func TestDoneUnknownID(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a")

	assert.Equal(t, 1, h.run("done", "zzzzzzzz"))
	assert.Contains(t, h.err.String(), "no todo with id zzzzzzzz")
}

func TestEditRenames(t *testing.T) {
	h := newHarness(t)
	td := h.seed(t, "Buy milk")[0]

	require.Equal(t, 0, h.run("edit", td.ID, "Buy", "oat", "milk"))
	got, err := h.store.Get(td.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", got.Name)
	assert.Equal(t, td.CreatedAt, got.CreatedAt)

	assert.Equal(t, 2, h.run("edit", td.ID, " "))
	assert.Contains(t, h.err.String(), "Name must be at least 1 characters.")
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	td := h.seed(t, "a", "b")[0]

	require.Equal(t, 0, h.run("rm", td.ID))
	assert.Contains(t, h.out.String(), "Delete todo successfully")
	_, err := h.store.Get(td.ID)
	assert.Error(t, err)

	assert.Equal(t, 1, h.run("rm", td.ID))
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("auth", "status"))
	assert.Contains(t, h.out.String(), "not logged in")

	h.opt.In = strings.NewReader("Bearer abcdefghijkl\n")
	require.Equal(t, 0, h.run("auth", "login"))
	assert.Contains(t, h.out.String(), "token saved")

	require.Equal(t, 0, h.run("auth", "status"))
	assert.Contains(t, h.out.String(), "abcd****ijkl (from file)")

	require.Equal(t, 0, h.run("auth", "whoami"))
	assert.Contains(t, h.out.String(), "Opaque token")

	require.Equal(t, 0, h.run("auth", "logout"))
	assert.Equal(t, 1, h.run("auth", "status"))

	assert.Equal(t, 2, h.run("auth"))
	assert.Equal(t, 2, h.run("auth", "frob"))
}

func TestTokenIsSent(t *testing.T) {
	store := devserver.NewStore()
	srv := httptest.NewServer(devserver.New(store, devserver.WithToken("s3cret")).Handler())
	defer srv.Close()

	h := newHarness(t)
	h.opt.Config.APIURL = srv.URL

	assert.Equal(t, 1, h.run("find"))

	require.NoError(t, h.opt.Auth.Set("s3cret", nil))
	assert.Equal(t, 0, h.run("find"))
}

func TestLsStartsInteractiveView(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.PageSize = 7
	h.opt.Config.Debounce = config.Duration{Duration: 250 * time.Millisecond}

	var got tui.Options
	h.opt.Interactive = func(_ context.Context, o tui.Options) (model.Filter, error) {
		got = o
		return o.Filter, nil
	}
	require.Equal(t, 0, h.run("ls"))
	assert.Equal(t, model.Filter{Status: model.StatusAll, Limit: 7}, got.Filter)
	assert.Equal(t, 250*time.Millisecond, got.Debounce)
	assert.NotNil(t, got.Backend)
}

func TestLsRestoresLastFilter(t *testing.T) {
	h := newHarness(t)
	h.opt.SessionFile = filepath.Join(t.TempDir(), "session.json")

	var got []model.Filter
	h.opt.Interactive = func(_ context.Context, o tui.Options) (model.Filter, error) {
		got = append(got, o.Filter)
		return model.Filter{Search: "milk", Status: model.StatusCompleted, Limit: o.Filter.Limit}, nil
	}
	require.Equal(t, 0, h.run("ls"))
	require.Equal(t, 0, h.run("ls"))

	require.Len(t, got, 2)
	assert.Equal(t, model.Filter{Status: model.StatusAll, Limit: 2}, got[0])
	assert.Equal(t, model.Filter{Search: "milk", Status: model.StatusCompleted, Limit: 2}, got[1])
}

func TestLsReportsFailure(t *testing.T) {
	h := newHarness(t)
	h.opt.Interactive = func(context.Context, tui.Options) (model.Filter, error) {
		return model.Filter{}, errors.New("no tty")
	}
	assert.Equal(t, 1, h.run("ls"))
	assert.Contains(t, h.err.String(), "ls: no tty")
}

func TestServeStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- Run(ctx, []string{"serve", "--listen", "127.0.0.1:0"}, h.opt) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "abcd**ghij", mask("abcdefghij"))
}

func TestLogoutKeepsEnvToken(t *testing.T) {
	h := newHarness(t)
	h.opt.Auth.Getenv = func(k string) string {
		if k == "TADA_TOKEN" {
			return "from-env"
		}
		return ""
	}
	require.Equal(t, 0, h.run("auth", "logout"))
	assert.Contains(t, h.out.String(), "nothing to delete")
}
