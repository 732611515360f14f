// Package api is a thin HTTP client for the remote /todo resource.
// It performs no retries; every failure is returned as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// Sort defaults used by the list view.
const (
	DefaultSortBy = "created_at"
	DefaultOrder  = "desc"
)

// FindParams are the query parameters of GET /todo. Search is omitted when
// empty and Status when negative.
type FindParams struct {
	Search string
	Status int
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// Client talks to one todo API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	logger     *log.Logger
	sortBy     string
	order      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithToken sets a bearer token source. An empty token sends no header.
func WithToken(source func() string) Option {
	return func(c *Client) { c.token = source }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSort sets the default sortBy/order used when FindParams leaves them empty.
func WithSort(sortBy, order string) Option {
	return func(c *Client) {
		if sortBy != "" {
			c.sortBy = sortBy
		}
		if order != "" {
			c.order = order
		}
	}
}

// New returns a client for baseURL (for example http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.New(io.Discard),
		sortBy:     DefaultSortBy,
		order:      DefaultOrder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

type findResponse struct {
	Data []model.Todo `json:"data"`
}

// errorBody is the JSON error envelope: {"error": "...", "fields": [...]}.
type errorBody struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Fields  []model.FieldError `json:"fields"`
}

// Find fetches one page of todos.
func (c *Client) Find(ctx context.Context, p FindParams) ([]model.Todo, error) {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Status >= 0 {
		q.Set("status", strconv.Itoa(p.Status))
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	sortBy, order := p.SortBy, p.Order
	if sortBy == "" {
		sortBy = c.sortBy
	}
	if order == "" {
		order = c.order
	}
	q.Set("sortBy", sortBy)
	q.Set("order", order)

	var out findResponse
	if err := c.do(ctx, "find", http.MethodGet, "/todo?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []model.Todo{}
	}
	return out.Data, nil
}

// Create posts a new record and returns what the server stored.
func (c *Client) Create(ctx context.Context, t model.Todo) (model.Todo, error) {
	t.ID = ""
	out := t
	if err := c.do(ctx, "create", http.MethodPost, "/todo", t, &out); err != nil {
		return model.Todo{}, err
	}
	return out, nil
}

// Update replaces the record with the given id.
func (c *Client) Update(ctx context.Context, id string, t model.Todo) (model.Todo, error) {
	if id == "" {
		return model.Todo{}, &Error{Kind: KindNotFound, Op: "update", Message: "missing id"}
	}
	t.ID = ""
	out := t
	out.ID = id
	if err := c.do(ctx, "update", http.MethodPut, "/todo/"+url.PathEscape(id), t, &out); err != nil {
		return model.Todo{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// Delete removes the record with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &Error{Kind: KindNotFound, Op: "delete", Message: "missing id"}
	}
	return c.do(ctx, "delete", http.MethodDelete, "/todo/"+url.PathEscape(id), nil, nil)
}

// do sends one request. out is left untouched when the response has no body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("marshal: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "method", method, "path", path, "err", err)
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "took", time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, status int, raw []byte) error {
	e := &Error{Kind: kindForStatus(status), Op: op, Status: status}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		e.Message = eb.Error
		if e.Message == "" {
			e.Message = eb.Message
		}
		e.Fields = eb.Fields
	} else if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
		e.Message = s
	}
	switch e.Kind {
	case KindNotFound:
		e.Err = ErrNotFound
	case KindServer:
		e.Err = ErrServer
	case KindValidation:
		e.Err = ErrValidation
	}
	return e
}

// IsCanceled reports whether err comes from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
