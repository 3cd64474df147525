package console

import (
	"errors"
	"io"

	"github.com/bnema/buswork-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type viewFunc func(styles) string

type model struct {
	view   viewFunc
	styles styles
	output string
}

func newModel(view viewFunc) model {
	return model{
		view:   view,
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.view(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

func render(view viewFunc) (string, error) {
	p := tea.NewProgram(
		newModel(view),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

// RenderStatus renders the session summary printed by `bw status`.
func RenderStatus(status Status, opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		return statusView(status, opts, s)
	})
}

// RenderJobs renders the job catalogue grouped by platform.
func RenderJobs(specs []domain.JobSpec) (string, error) {
	return render(func(s styles) string {
		return jobsView(specs, s)
	})
}

// RenderLog renders a log snapshot, oldest entry first.
func RenderLog(entries []domain.LogEntry) (string, error) {
	return render(func(s styles) string {
		return logView(entries, s)
	})
}
