package optimistic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada-client/internal/model"
)

func sample() []model.Todo {
	return []model.Todo{
		{ID: "a", Name: "Buy milk"},
		{ID: "b", Name: "Walk dog"},
		{ID: "c", Name: "Write report", Status: model.StatusCompleted},
	}
}

func ids(items []model.Todo) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestToggleIsVisibleBeforeConfirmation(t *testing.T) {
	l := New(sample())

	m, err := l.Toggle("a")
	require.NoError(t, err)

	e, _ := l.Entry("a")
	assert.Equal(t, PendingUpdate, e.State)
	assert.Equal(t, "Completed", l.Visible()[0].StatusLabel())
	assert.Equal(t, model.StatusCompleted, m.Want.Status)

	updated := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	server := m.Want
	server.UpdateAt = updated
	l.Confirm(m, &server)

	e, _ = l.Entry("a")
	assert.Equal(t, Synced, e.State)
	assert.Equal(t, updated, e.Shadow.UpdateAt)
}

func TestFailedToggleRollsBack(t *testing.T) {
	l := New(sample())

	m, err := l.Toggle("a")
	require.NoError(t, err)
	require.True(t, l.Visible()[0].Done())

	restored, changed := l.Fail(m)
	assert.True(t, changed)
	assert.False(t, restored.Done())

	e, _ := l.Entry("a")
	assert.Equal(t, Synced, e.State)
	assert.False(t, l.Visible()[0].Done())
}

func TestOverlappingUpdates(t *testing.T) {
	l := New(sample())

	first, _ := l.Toggle("a")  // -> completed
	second, _ := l.Toggle("a") // -> incomplete again
	assert.False(t, l.Visible()[0].Done())

	// The older response lands first and must not clobber the newer shadow.
	l.Confirm(first, &first.Want)
	e, _ := l.Entry("a")
	assert.Equal(t, PendingUpdate, e.State)
	assert.False(t, e.Shadow.Done())

	// The newer one fails: roll back to what the server last confirmed.
	restored, changed := l.Fail(second)
	assert.True(t, changed)
	assert.True(t, restored.Done())
}

func TestStaleFailureIgnored(t *testing.T) {
	l := New(sample())

	first, _ := l.Toggle("b")
	second, _ := l.Toggle("b")

	_, changed := l.Fail(first)
	assert.False(t, changed)

	l.Confirm(second, nil)
	e, _ := l.Entry("b")
	assert.Equal(t, Synced, e.State)
	assert.False(t, e.Shadow.Done())
}

func TestDeleteHidesImmediately(t *testing.T) {
	l := New(sample())

	m, err := l.Delete("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(l.Visible()))

	_, err = l.Toggle("b")
	assert.ErrorIs(t, err, ErrPendingDelete)

	l.Confirm(m, nil)
	assert.Equal(t, []string{"a", "c"}, ids(l.Visible()))
	_, ok := l.Entry("b")
	assert.False(t, ok)

	_, err = l.Delete("b")
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestFailedDeleteRestoresPosition(t *testing.T) {
	l := New(sample())

	m, _ := l.Delete("b")
	require.Equal(t, 2, l.Len())

	restored, changed := l.Fail(m)
	assert.True(t, changed)
	assert.Equal(t, "Walk dog", restored.Name)
	assert.Equal(t, []string{"a", "b", "c"}, ids(l.Visible()))
}

func TestDeleteAfterPendingToggle(t *testing.T) {
	l := New(sample())

	toggle, _ := l.Toggle("a")
	del, _ := l.Delete("a")

	l.Confirm(toggle, &toggle.Want)
	assert.Equal(t, []string{"b", "c"}, ids(l.Visible()), "still hidden while delete is pending")

	restored, changed := l.Fail(del)
	assert.True(t, changed)
	assert.True(t, restored.Done(), "restored to the confirmed toggle")
}

func TestDeleteFailsBeforePendingToggle(t *testing.T) {
	l := New(sample())

	toggle, _ := l.Toggle("a")
	del, _ := l.Delete("a")

	restored, changed := l.Fail(del)
	assert.True(t, changed)
	assert.True(t, restored.Done(), "toggle is still in flight")
	e, _ := l.Entry("a")
	assert.Equal(t, PendingUpdate, e.State)

	server := toggle.Want
	server.Name = "Buy milk (server)"
	l.Confirm(toggle, &server)
	e, _ = l.Entry("a")
	assert.Equal(t, Synced, e.State)
	assert.True(t, e.Shadow.Done())
	assert.Equal(t, "Buy milk (server)", l.Visible()[0].Name)
}

func TestDeleteFailsBeforePendingToggleFails(t *testing.T) {
	l := New(sample())

	toggle, _ := l.Toggle("a")
	del, _ := l.Delete("a")

	_, _ = l.Fail(del)
	restored, changed := l.Fail(toggle)
	assert.True(t, changed)
	assert.False(t, restored.Done())
	e, _ := l.Entry("a")
	assert.Equal(t, Synced, e.State)
}

func TestApplyEdit(t *testing.T) {
	l := New(sample())

	want := l.Visible()[1]
	want.Name = "Walk the dog"
	m, err := l.Apply("b", want)
	require.NoError(t, err)
	assert.Equal(t, "Walk the dog", l.Visible()[1].Name)

	l.Confirm(m, nil)
	e, _ := l.Entry("b")
	assert.Equal(t, Synced, e.State)
	assert.Equal(t, "Walk the dog", e.Shadow.Name)
}

func TestReplaceKeepsPendingShadows(t *testing.T) {
	l := New(sample())
	m, _ := l.Toggle("a")
	_, _ = l.Delete("c")

	refreshed := append(sample(), model.Todo{ID: "d", Name: "New"})
	l.Replace(refreshed)

	assert.Equal(t, []string{"a", "b", "d"}, ids(l.Visible()))
	assert.True(t, l.Visible()[0].Done(), "pending toggle survives a refetch")

	_, changed := l.Fail(m)
	assert.True(t, changed)
	assert.False(t, l.Visible()[0].Done())
}

func TestReplaceDropsDuplicates(t *testing.T) {
	items := append(sample(), model.Todo{ID: "a", Name: "dup"})
	l := New(items)
	assert.Equal(t, []string{"a", "b", "c"}, ids(l.Visible()))
	assert.Equal(t, "Buy milk", l.Visible()[0].Name)
}

func TestUnknownItem(t *testing.T) {
	l := New(nil)
	_, err := l.Toggle("x")
	assert.ErrorIs(t, err, ErrUnknownItem)

	l.Confirm(Mutation{ID: "x"}, nil)
	_, changed := l.Fail(Mutation{ID: "x"})
	assert.False(t, changed)
}

func TestPendingEntriesSurviveEmptyReplace(t *testing.T) {
	l := New(sample())
	toggle, _ := l.Toggle("a")
	del, _ := l.Delete("b")

	// A new query run starts from an empty list.
	l.Replace(nil)
	assert.Empty(t, l.Visible())
	e, ok := l.Entry("a")
	require.True(t, ok)
	assert.Equal(t, PendingUpdate, e.State)

	// Page 1 still carries the old server rows.
	l.Replace(sample())
	assert.Equal(t, []string{"a", "c"}, ids(l.Visible()))
	assert.True(t, l.Visible()[0].Done())

	l.Confirm(toggle, &toggle.Want)
	e, _ = l.Entry("a")
	assert.Equal(t, Synced, e.State)
	assert.True(t, e.Shadow.Done())

	l.Confirm(del, nil)
	assert.Equal(t, []string{"a", "c"}, ids(l.Visible()))
	_, ok = l.Entry("b")
	assert.False(t, ok)
}

func TestDetachedEntryResolvesBeforePage(t *testing.T) {
	l := New(sample())
	toggle, _ := l.Toggle("a")
	del, _ := l.Delete("c")

	l.Replace(nil)
	l.Confirm(toggle, &toggle.Want)
	_, changed := l.Fail(del)
	assert.False(t, changed, "not listed yet")

	_, ok := l.Entry("a")
	assert.False(t, ok, "settled entries are not kept aside")

	l.Replace(sample())
	assert.Equal(t, []string{"a", "b", "c"}, ids(l.Visible()))
}
