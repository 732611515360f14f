// Package optimistic tracks the visible todo list and applies user edits
// before the server confirms them.
//
// Each entry keeps two copies of its record: the shadow shown to the user
// and the last value the server confirmed. A failed mutation puts the
// confirmed value back.
package optimistic

import (
	"errors"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// State of one entry.
type State int

const (
	Synced State = iota
	PendingUpdate
	PendingDelete
	Deleted
)

func (s State) String() string {
	switch s {
	case PendingUpdate:
		return "pending update"
	case PendingDelete:
		return "pending delete"
	case Deleted:
		return "deleted"
	}
	return "synced"
}

// Kind of mutation.
type Kind int

const (
	KindUpdate Kind = iota
	KindDelete
)

// ErrUnknownItem is returned for ids not in the list or already deleted.
var ErrUnknownItem = errors.New("item not in list")

// ErrPendingDelete is returned when editing an item that is being deleted.
var ErrPendingDelete = errors.New("item is being deleted")

// Mutation identifies one dispatched change. Seq orders mutations of the
// same item.
type Mutation struct {
	ID   string
	Seq  uint64
	Kind Kind
	Want model.Todo // the optimistic value sent to the server
}

// Entry is one item with its local state.
type Entry struct {
	Shadow   model.Todo
	State    State
	synced   model.Todo
	updating uint64 // seq of the newest update in flight, 0 when none
	deleting uint64 // seq of the delete in flight, 0 when none
}

func (e *Entry) pending() bool { return e.updating != 0 || e.deleting != 0 }

// List is the ordered set of entries. Not safe for concurrent use.
type List struct {
	entries []*Entry
	index   map[string]int
	// detached holds entries with a mutation in flight that the latest
	// Replace did not include. They are hidden until a page brings them
	// back or their mutation resolves.
	detached map[string]*Entry
	seq      uint64
}

// New returns a list built from server records.
func New(items []model.Todo) *List {
	l := &List{}
	l.Replace(items)
	return l
}

// Replace rebuilds the list from freshly fetched records. Entries with a
// mutation still in flight keep their shadow and state, even when items
// does not contain them yet.
func (l *List) Replace(items []model.Todo) {
	prev := make(map[string]*Entry, len(l.entries)+len(l.detached))
	for id, e := range l.detached {
		prev[id] = e
	}
	for _, e := range l.entries {
		prev[e.Shadow.ID] = e
	}

	l.entries = make([]*Entry, 0, len(items))
	l.index = make(map[string]int, len(items))
	for _, it := range items {
		if _, dup := l.index[it.ID]; dup {
			continue
		}
		e := &Entry{Shadow: it, synced: it}
		if old, ok := prev[it.ID]; ok && old.pending() {
			old.synced = it
			e = old
			delete(prev, it.ID)
		}
		l.index[it.ID] = len(l.entries)
		l.entries = append(l.entries, e)
	}

	l.detached = make(map[string]*Entry)
	for id, e := range prev {
		if e.pending() && e.State != Deleted {
			l.detached[id] = e
		}
	}
}

// Visible returns the records to render, in order, without items that are
// being or have been deleted.
func (l *List) Visible() []model.Todo {
	out := make([]model.Todo, 0, len(l.entries))
	for _, e := range l.entries {
		if e.State == PendingDelete || e.State == Deleted {
			continue
		}
		out = append(out, e.Shadow)
	}
	return out
}

// Len counts visible items.
func (l *List) Len() int { return len(l.Visible()) }

// Entry returns the entry for id, including one waiting for a page to
// bring it back.
func (l *List) Entry(id string) (Entry, bool) {
	e := l.find(id)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Toggle flips the item's status locally and returns the update to send.
func (l *List) Toggle(id string) (Mutation, error) {
	e := l.lookup(id)
	if e == nil {
		return Mutation{}, ErrUnknownItem
	}
	return l.Apply(id, e.Shadow.Toggled())
}

// Apply sets the item's shadow to want and returns the update to send.
func (l *List) Apply(id string, want model.Todo) (Mutation, error) {
	e := l.lookup(id)
	if e == nil {
		return Mutation{}, ErrUnknownItem
	}
	if e.State == PendingDelete {
		return Mutation{}, ErrPendingDelete
	}
	want.ID = id
	e.Shadow = want
	e.State = PendingUpdate
	m := l.next(e, KindUpdate)
	e.updating = m.Seq
	return m, nil
}

// Delete hides the item immediately and returns the delete to send.
func (l *List) Delete(id string) (Mutation, error) {
	e := l.lookup(id)
	if e == nil {
		return Mutation{}, ErrUnknownItem
	}
	e.State = PendingDelete
	m := l.next(e, KindDelete)
	e.deleting = m.Seq
	return m, nil
}

// Confirm applies a successful server response. server may be nil when the
// response carried no record.
func (l *List) Confirm(m Mutation, server *model.Todo) {
	e := l.find(m.ID)
	if e == nil {
		return
	}

	if m.Kind == KindDelete {
		e.State = Deleted
		e.updating, e.deleting = 0, 0
		l.drop(m.ID)
		return
	}

	confirmed := m.Want
	if server != nil {
		confirmed = *server
		confirmed.ID = m.ID
	}
	e.synced = confirmed
	if m.Seq != e.updating {
		// A newer update owns the shadow.
		return
	}
	e.updating = 0
	switch e.State {
	case PendingUpdate:
		e.Shadow = confirmed
		e.State = Synced
	case PendingDelete:
		// Shown again only if the delete fails.
		e.Shadow = confirmed
	}
	l.settle(m.ID, e)
}

// Fail rolls back a failed mutation. It returns the restored record and
// whether the visible list changed.
func (l *List) Fail(m Mutation) (model.Todo, bool) {
	e := l.find(m.ID)
	if e == nil {
		return model.Todo{}, false
	}

	switch m.Kind {
	case KindDelete:
		if e.State != PendingDelete || m.Seq != e.deleting {
			return e.Shadow, false
		}
		e.deleting = 0
		if e.updating != 0 {
			// An earlier update is still in flight; its value stays shown
			// until it resolves.
			e.State = PendingUpdate
		} else {
			// The item reappears at its original position with the last
			// value the server confirmed.
			e.Shadow = e.synced
			e.State = Synced
		}
		l.settle(m.ID, e)
		return e.Shadow, l.attached(m.ID)
	default:
		if m.Seq != e.updating {
			// A newer mutation owns the shadow now.
			return e.Shadow, false
		}
		e.updating = 0
		e.Shadow = e.synced
		if e.State == PendingDelete {
			return e.Shadow, false
		}
		e.State = Synced
		l.settle(m.ID, e)
		return e.Shadow, l.attached(m.ID)
	}
}

func (l *List) next(e *Entry, k Kind) Mutation {
	l.seq++
	return Mutation{ID: e.Shadow.ID, Seq: l.seq, Kind: k, Want: e.Shadow}
}

// lookup finds a listed entry that can still be changed.
func (l *List) lookup(id string) *Entry {
	i, ok := l.index[id]
	if !ok {
		return nil
	}
	e := l.entries[i]
	if e.State == Deleted {
		return nil
	}
	return e
}

// find is lookup extended to detached entries.
func (l *List) find(id string) *Entry {
	if e := l.lookup(id); e != nil {
		return e
	}
	return l.detached[id]
}

func (l *List) attached(id string) bool {
	_, ok := l.index[id]
	return ok
}

// settle forgets a detached entry once nothing is in flight for it.
func (l *List) settle(id string, e *Entry) {
	if !e.pending() {
		delete(l.detached, id)
	}
}

func (l *List) drop(id string) {
	delete(l.detached, id)
	i, ok := l.index[id]
	if !ok {
		return
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.entries); j++ {
		l.index[l.entries[j].Shadow.ID] = j
	}
}
