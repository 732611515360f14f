// Package filter holds the list view's filter tuple and the search
// debouncer that feeds it.
package filter

import "github.com/Makepad-fr/tada-client/internal/model"

// Patch is a partial filter update. Nil fields are left unchanged.
type Patch struct {
	Search *string
	Status *int
	Limit  *int
}

// Search returns a patch that only sets the search text.
func Search(s string) Patch { return Patch{Search: &s} }

// Status returns a patch that only sets the status filter.
func Status(s int) Patch { return Patch{Status: &s} }

// Limit returns a patch that only sets the page size.
func Limit(n int) Patch { return Patch{Limit: &n} }

// Store owns the current filter. It is not safe for concurrent use; the
// UI loop is its only writer.
type Store struct {
	state        model.Filter
	defaultLimit int
}

// NewStore starts from initial. A non-positive limit is replaced by
// model.DefaultLimit.
func NewStore(initial model.Filter) *Store {
	if initial.Limit <= 0 {
		initial.Limit = model.DefaultLimit
	}
	return &Store{state: initial, defaultLimit: initial.Limit}
}

// State returns the current filter value.
func (s *Store) State() model.Filter { return s.state }

// Set merges p into the current state and reports whether anything
// changed. Every change must be followed by exactly one re-fetch.
func (s *Store) Set(p Patch) (model.Filter, bool) {
	next := s.state
	if p.Search != nil {
		next.Search = *p.Search
	}
	if p.Status != nil {
		next.Status = *p.Status
		if next.Status < 0 {
			next.Status = model.StatusAll
		}
	}
	if p.Limit != nil {
		next.Limit = *p.Limit
		if next.Limit <= 0 {
			next.Limit = s.defaultLimit
		}
	}
	if next == s.state {
		return s.state, false
	}
	s.state = next
	return next, true
}
