package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada-client/internal/model"
)

var errNotFound = errors.New("todo not found")

// Query is a parsed GET /todo request.
type Query struct {
	Search string
	Status int // model.StatusAll for no filter
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// Store is an in-memory todo table. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	todos map[string]model.Todo
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{todos: make(map[string]model.Todo), now: time.Now}
}

// Create validates c and stores it under a fresh id.
func (s *Store) Create(c model.Candidate) (model.Todo, error) {
	t, err := model.Normalize(c, s.now().UTC())
	if err != nil {
		return model.Todo{}, err
	}
	t.ID = uuid.NewString()

	s.mu.Lock()
	s.todos[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

// Update replaces the record. created_at is kept from the stored record
// and update_at is always refreshed.
func (s *Store) Update(id string, c model.Candidate) (model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.todos[id]
	if !ok {
		return model.Todo{}, errNotFound
	}
	now := s.now().UTC()
	t, err := model.Normalize(c, now)
	if err != nil {
		return model.Todo{}, err
	}
	t.ID = id
	t.CreatedAt = existing.CreatedAt
	t.UpdateAt = now
	s.todos[id] = t
	return t, nil
}

// Delete removes the record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[id]; !ok {
		return errNotFound
	}
	delete(s.todos, id)
	return nil
}

// Get returns one record.
func (s *Store) Get(id string) (model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return model.Todo{}, errNotFound
	}
	return t, nil
}

// Find filters, sorts and pages the table. Page and Limit below 1 are
// treated as 1.
func (s *Store) Find(q Query) []model.Todo {
	q.Page = max(q.Page, 1)
	q.Limit = max(q.Limit, 1)

	s.mu.RLock()
	matched := make([]model.Todo, 0, len(s.todos))
	needle := strings.ToLower(q.Search)
	for _, t := range s.todos {
		if needle != "" && !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		if q.Status >= 0 && t.Done() != (q.Status != model.StatusIncomplete) {
			continue
		}
		matched = append(matched, t)
	}
	s.mu.RUnlock()

	less := lessFunc(q.SortBy)
	desc := strings.EqualFold(q.Order, "desc")
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return []model.Todo{}
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end]
}

// lessFunc orders by the requested column, falling back to id so pages
// stay stable between requests.
func lessFunc(sortBy string) func(a, b model.Todo) bool {
	switch sortBy {
	case "name":
		return func(a, b model.Todo) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		}
	case "update_at":
		return func(a, b model.Todo) bool {
			if !a.UpdateAt.Equal(b.UpdateAt) {
				return a.UpdateAt.Before(b.UpdateAt)
			}
			return a.ID < b.ID
		}
	}
	return func(a, b model.Todo) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}
}
