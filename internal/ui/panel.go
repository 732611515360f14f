package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Frame wraps content in the theme's border.
func Frame(content string) string {
	t := Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(content)
}

// Panel writes lines inside a framed box.
func Panel(w io.Writer, lines []string) {
	fmt.Fprintln(w, Frame(strings.Join(lines, "\n")))
}

// Badge renders the Completed/Incomplete label.
func Badge(t model.Todo) string {
	th := Current()
	if t.Done() {
		return th.Success.Render(t.StatusLabel())
	}
	return th.Error.UnsetBold().Render(t.StatusLabel())
}

// Checkbox renders the status box.
func Checkbox(t model.Todo) string {
	th := Current()
	if t.Done() {
		return th.Success.Render(th.BoxChecked)
	}
	return th.Muted.Render(th.BoxUnchecked)
}

// Truncate shortens s to max characters, ending with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// ShortID is the prefix of an id shown in listings.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TodoLine renders one record for non-interactive output.
func TodoLine(t model.Todo) string {
	th := Current()
	name := Truncate(t.Name, 60)
	if t.Done() {
		name = th.Done.Render(name)
	}
	return fmt.Sprintf("%s %s %s  %s",
		th.Muted.Render(fmt.Sprintf("%-8s", ShortID(t.ID))),
		Checkbox(t), name, Badge(t))
}

// Stats counts completed and pending items.
func Stats(items []model.Todo) (done, pending int) {
	for _, it := range items {
		if it.Done() {
			done++
		} else {
			pending++
		}
	}
	return
}

// Header is the title line with live counts.
func Header(items []model.Todo, f model.Filter) string {
	th := Current()
	d, p := Stats(items)
	h := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		th.Title.Render("Todos"),
		th.Success.Render(th.SymDone), d,
		th.Pending.Render(th.SymPending), p,
		th.Accent.Render("Shown"), len(items),
	)
	var tags []string
	if f.Search != "" {
		tags = append(tags, fmt.Sprintf("search %q", f.Search))
	}
	if f.Status != model.StatusAll {
		tags = append(tags, "status "+model.StatusName(f.Status))
	}
	if len(tags) > 0 {
		h += "  " + th.Muted.Render("("+strings.Join(tags, ", ")+")")
	}
	return h
}

// FlatLines renders items one per line.
func FlatLines(items []model.Todo) []string {
	if len(items) == 0 {
		return []string{Current().Muted.Render("No results found.")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, TodoLine(it))
	}
	return out
}

// GroupLines renders pending items first, then completed ones.
func GroupLines(items []model.Todo) []string {
	th := Current()
	var pend, done []model.Todo
	for _, it := range items {
		if it.Done() {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	var lines []string
	lines = append(lines, th.Accent.Render("Incomplete"))
	if len(pend) == 0 {
		lines = append(lines, th.Muted.Render("(none)"))
	} else {
		lines = append(lines, FlatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, th.Accent.Render("Completed"))
	if len(done) == 0 {
		lines = append(lines, th.Muted.Render("(none)"))
	} else {
		lines = append(lines, FlatLines(done)...)
	}
	return lines
}
