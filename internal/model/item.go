package model

import (
	"strings"
	"time"
)

// Status values as the API encodes them. Any nonzero value is complete.
const (
	StatusIncomplete = 0
	StatusCompleted  = 1

	// StatusAll is the filter value meaning "no status filter".
	StatusAll = -1
)

// Todo is the domain model for a todo entry as the server stores it.
type Todo struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdateAt  time.Time `json:"update_at"`
}

// Done reports whether the item counts as completed.
func (t Todo) Done() bool { return t.Status != StatusIncomplete }

// Toggled returns a copy with the status flipped.
func (t Todo) Toggled() Todo {
	if t.Done() {
		t.Status = StatusIncomplete
	} else {
		t.Status = StatusCompleted
	}
	return t
}

// StatusLabel is the badge text shown next to an item.
func (t Todo) StatusLabel() string {
	if t.Done() {
		return "Completed"
	}
	return "Incomplete"
}

// Filter is the tuple that identifies one paginated query run.
type Filter struct {
	Search string
	Status int
	Limit  int
}

// DefaultLimit is the page size used when nothing else is configured.
const DefaultLimit = 20

// DefaultFilter returns the initial filter state.
func DefaultFilter() Filter {
	return Filter{Search: "", Status: StatusAll, Limit: DefaultLimit}
}

// StatusOption is one entry of the status facet.
type StatusOption struct {
	Label string
	Value int
}

// StatusOptions lists the facet in display order.
var StatusOptions = []StatusOption{
	{Label: "All", Value: StatusAll},
	{Label: "Completed", Value: StatusCompleted},
	{Label: "Incomplete", Value: StatusIncomplete},
}

// ParseStatus maps user input ("all", "done", "todo", "-1", "1", "0") to a
// filter status.
func ParseStatus(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "-1":
		return StatusAll, true
	case "done", "completed", "complete", "1":
		return StatusCompleted, true
	case "todo", "pending", "incomplete", "0":
		return StatusIncomplete, true
	}
	return 0, false
}

// StatusName is the facet label for a filter status.
func StatusName(status int) string {
	for _, o := range StatusOptions {
		if o.Value == status {
			return o.Label
		}
	}
	return "All"
}
