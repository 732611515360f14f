package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Makepad-fr/tada-client/internal/model"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "ééé...", Truncate("éééééééé", 6))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "12345678", ShortID("1234567890"))
}

func TestGroupLines(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	items := []model.Todo{
		{ID: "a", Name: "pending one"},
		{ID: "b", Name: "done one", Status: model.StatusCompleted},
	}
	out := strings.Join(GroupLines(items), "\n")

	pendingAt := strings.Index(out, "pending one")
	doneAt := strings.Index(out, "done one")
	assert.Greater(t, doneAt, pendingAt)
	assert.Contains(t, out, "[x]")
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "Completed")
}

func TestFlatLinesEmpty(t *testing.T) {
	assert.Contains(t, strings.Join(FlatLines(nil), ""), "No results found.")
}

func TestHeaderShowsFilter(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	h := Header(nil, model.Filter{Search: "milk", Status: model.StatusCompleted, Limit: 20})
	assert.Contains(t, h, `search "milk"`)
	assert.Contains(t, h, "status Completed")
}

func TestOKAndFail(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	var buf bytes.Buffer
	OK(&buf, "added")
	Fail(&buf, "boom")
	assert.Equal(t, "ok added\nerror: boom\n", buf.String())
}
