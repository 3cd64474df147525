package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const credentialFieldLimit = 128

type form struct {
	username textinput.Model
	password textinput.Model
	focus    int
	err      string
}

func newForm() form {
	username := textinput.New()
	username.Prompt = "username: "
	username.Placeholder = "operator"
	username.CharLimit = credentialFieldLimit

	password := textinput.New()
	password.Prompt = "password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = credentialFieldLimit

	f := form{username: username, password: password}
	f.username.Focus()
	return f
}

func (f *form) reset() tea.Cmd {
	f.username.Reset()
	f.password.Reset()
	f.err = ""
	f.focus = 0
	f.password.Blur()
	return f.username.Focus()
}

func (f *form) cycle() tea.Cmd {
	f.focus = (f.focus + 1) % 2
	if f.focus == 0 {
		f.password.Blur()
		return f.username.Focus()
	}
	f.username.Blur()
	return f.password.Focus()
}

func (f form) values() (string, string) {
	return strings.TrimSpace(f.username.Value()), f.password.Value()
}

func (f form) update(msg tea.Msg) (form, tea.Cmd) {
	var cmd tea.Cmd
	if f.focus == 0 {
		f.username, cmd = f.username.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return f, cmd
}

func (f form) view(title, hint string) string {
	lines := []string{
		styleAccent.Render(title),
		"",
		f.username.View(),
		f.password.View(),
	}
	if f.err != "" {
		lines = append(lines, "", styleError.Render(f.err))
	}
	lines = append(lines, "", styleHelp.Render(hint))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
