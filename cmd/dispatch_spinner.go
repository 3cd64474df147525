package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dispatchDoneMsg struct {
	message string
	err     error
}

type dispatchSpinnerModel struct {
	spinner  spinner.Model
	label    string
	dispatch tea.Cmd
	message  string
	err      error
	done     bool
}

func newDispatchSpinnerModel(label string, dispatch tea.Cmd) dispatchSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return dispatchSpinnerModel{
		spinner:  s,
		label:    label,
		dispatch: dispatch,
	}
}

func (m dispatchSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.dispatch)
}

func (m dispatchSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case dispatchDoneMsg:
		m.done = true
		m.message = msg.message
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m dispatchSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runDispatchSpinner shows a spinner on output while dispatch is in flight.
func runDispatchSpinner(ctx context.Context, output io.Writer, label string, dispatch func(context.Context) (string, error)) (string, error) {
	dispatchCmd := func() tea.Msg {
		message, err := dispatch(ctx)
		return dispatchDoneMsg{message: message, err: err}
	}

	p := tea.NewProgram(
		newDispatchSpinnerModel(label, dispatchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	result, ok := finalModel.(dispatchSpinnerModel)
	if !ok {
		return "", fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.message, result.err
}
