// Package query accumulates pages of search results for one filter
// identity at a time.
//
// A Query never performs I/O itself. Reset and Next hand out Requests that
// the caller executes (see Fetch); the outcome is fed back through Resolve.
// Every Request carries the generation it was issued under, so results for a
// superseded filter are recognised and dropped no matter when they arrive.
package query

import (
	"context"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// Status is the lifecycle of the current query run.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Errored
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "error"
	}
	return "idle"
}

// Request is one page fetch to perform.
type Request struct {
	Generation uint64
	Filter     model.Filter
	Page       int
}

// Params converts the request into API query parameters. Sorting is left
// to the client's configured default (created_at desc unless overridden).
func (r Request) Params() api.FindParams {
	return api.FindParams{
		Search: r.Filter.Search,
		Status: r.Filter.Status,
		Page:   r.Page,
		Limit:  r.Filter.Limit,
	}
}

// Result is the outcome of a Request.
type Result struct {
	Generation uint64
	Page       int
	Todos      []model.Todo
	Err        error
}

// Finder is the subset of *api.Client used for fetching.
type Finder interface {
	Find(ctx context.Context, p api.FindParams) ([]model.Todo, error)
}

// Fetch executes r against f.
func Fetch(ctx context.Context, f Finder, r Request) Result {
	todos, err := f.Find(ctx, r.Params())
	return Result{Generation: r.Generation, Page: r.Page, Todos: todos, Err: err}
}

// Query is the paginated search state. Not safe for concurrent use.
type Query struct {
	filter     model.Filter
	generation uint64
	pages      [][]model.Todo
	hasMore    bool
	inFlight   bool
	status     Status
	err        error
}

// New returns an idle query. Call Reset to start the first run.
func New() *Query { return &Query{} }

// Reset starts a new run for f: accumulated pages are dropped, the
// generation advances and page 1 is requested.
func (q *Query) Reset(f model.Filter) Request {
	q.generation++
	q.filter = f
	q.pages = nil
	q.hasMore = false
	q.err = nil
	q.inFlight = true
	q.status = Loading
	return Request{Generation: q.generation, Filter: f, Page: 1}
}

// Refetch restarts the current filter from page 1.
func (q *Query) Refetch() Request { return q.Reset(q.filter) }

// Next returns the request for the following page. After a failure it
// retries the page that failed. It reports false while a fetch is in
// flight, before Reset, and after a short page.
func (q *Query) Next() (Request, bool) {
	switch {
	case q.inFlight:
		return Request{}, false
	case q.status == Errored:
		q.err = nil
		q.status = Loading
	case q.status == Ready && q.hasMore:
	default:
		return Request{}, false
	}
	q.inFlight = true
	return Request{Generation: q.generation, Filter: q.filter, Page: len(q.pages) + 1}, true
}

// Resolve applies r. Results from an older generation are discarded and
// Resolve reports false.
func (q *Query) Resolve(r Result) bool {
	if r.Generation != q.generation || !q.inFlight {
		return false
	}
	q.inFlight = false

	if r.Err != nil {
		q.err = r.Err
		q.status = Errored
		q.hasMore = false
		return true
	}
	if r.Page != len(q.pages)+1 {
		// Pages are strictly sequential; an out-of-order page is stale.
		return false
	}

	page := r.Todos
	if page == nil {
		page = []model.Todo{}
	}
	q.pages = append(q.pages, page)
	q.hasMore = len(page) >= q.filter.Limit
	q.status = Ready
	return true
}

// Items returns all accumulated records in fetch order.
func (q *Query) Items() []model.Todo {
	n := 0
	for _, p := range q.pages {
		n += len(p)
	}
	out := make([]model.Todo, 0, n)
	for _, p := range q.pages {
		out = append(out, p...)
	}
	return out
}

// Filter returns the identity of the current run.
func (q *Query) Filter() model.Filter { return q.filter }

// Generation returns the current run's generation.
func (q *Query) Generation() uint64 { return q.generation }

// Pages returns how many pages have been accumulated.
func (q *Query) Pages() int { return len(q.pages) }

// HasMore reports whether another page may exist.
func (q *Query) HasMore() bool { return q.hasMore }

// Loading reports whether a fetch is in flight.
func (q *Query) Loading() bool { return q.inFlight }

// FetchingNext reports whether a page after the first is in flight.
func (q *Query) FetchingNext() bool { return q.inFlight && len(q.pages) > 0 }

// Status returns the lifecycle state.
func (q *Query) Status() Status { return q.status }

// Err returns the failure of the last fetch, if any.
func (q *Query) Err() error { return q.err }
