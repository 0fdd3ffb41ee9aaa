package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"teamboard/internal/board"
	"teamboard/internal/engine"
	"teamboard/internal/model"
)

type Options struct {
	// Kind is "projects", "tasks" or "issues".
	Kind string
	Mode board.Mode
	// OnState is called when the user switches kind or grouping.
	OnState func(kind string, mode board.Mode)
}

// Run shows the interactive board until the user quits or ctx is done.
func Run(ctx context.Context, e *engine.Engine, opts Options) error {
	applyColorProfile()

	changes, stop := watchChanges(e)
	defer stop()

	m := newBoardModel(e, opts.Kind, opts.Mode, changes)
	m.onState = opts.OnState
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// watchChanges turns cache notifications into a coalescing signal channel. The watcher runs on
// the store's delivery goroutine and must never block it.
func watchChanges(e *engine.Engine) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	stop := e.Watch(func(model.Kind) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, stop
}
