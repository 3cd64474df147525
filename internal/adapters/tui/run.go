package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender can receive messages (matches *tea.Program).
type Sender interface {
	Send(msg tea.Msg)
}

// ForwardUpdates turns log change notifications into LogUpdatedMsg until ctx
// is done or updates is closed.
func ForwardUpdates(ctx context.Context, updates <-chan struct{}, sender Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			sender.Send(LogUpdatedMsg{})
		}
	}
}

// Program wraps a running dashboard so callers can push session changes.
type Program struct {
	program *tea.Program
}

func NewProgram(cfg Config, opts ...tea.ProgramOption) *Program {
	base := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.Context != nil {
		base = append(base, tea.WithContext(cfg.Context))
	}
	return &Program{program: tea.NewProgram(New(cfg), append(base, opts...)...)}
}

// SessionChanged asks the dashboard to re-read the session.
func (p *Program) SessionChanged() {
	p.program.Send(SessionChangedMsg{})
}

// Run blocks until the operator quits. Log updates are forwarded for the
// lifetime of the program.
func (p *Program) Run(ctx context.Context, updates <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go ForwardUpdates(ctx, updates, p.program)

	if _, err := p.program.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
