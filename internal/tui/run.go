package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// Run starts the list view and blocks until the user quits or ctx ends.
// It returns the filter that was active on exit.
func Run(ctx context.Context, opts Options) (model.Filter, error) {
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.SetSender(p.Send)
	defer m.Close()

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	if fm, ok := final.(Model); ok {
		return fm.Filter(), err
	}
	return m.Filter(), err
}
