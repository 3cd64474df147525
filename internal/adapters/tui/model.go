package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/buswork-cli/internal/adapters/render/console"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	menuWidth     = 44
)

// Console is the set of operator actions the dashboard drives.
type Console interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Dispatch(ctx context.Context, command domain.JobCommand) (string, error)
}

type SessionView interface {
	State() domain.SessionState
	Active() (domain.Credential, bool)
}

type LogView interface {
	Snapshot() []domain.LogEntry
}

type ErrorView interface {
	Pending() (domain.AuthError, bool)
	Acknowledge()
}

type Config struct {
	Context context.Context
	Console Console
	Session SessionView
	Log     LogView
	Errors  ErrorView
	Jobs    []domain.JobSpec
}

// Model is the root dashboard model.
type Model struct {
	ctx     context.Context
	console Console
	session SessionView
	log     LogView
	errors  ErrorView
	jobs    []domain.JobSpec
	keys    KeyMap

	width  int
	height int

	state       domain.SessionState
	operator    string
	form        form
	registering bool
	authBusy    bool
	cursor      int
	pending     map[string]bool
	modal       string

	viewport viewport.Model
	spinner  spinner.Model
}

func New(cfg Config) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = domain.Catalogue()
	}

	vp := viewport.New(defaultWidth-menuWidth-4, defaultHeight-6)
	vp.KeyMap = viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}

	m := Model{
		ctx:     ctx,
		console: cfg.Console,
		session: cfg.Session,
		log:     cfg.Log,
		errors:  cfg.Errors,
		jobs:    jobs,
		keys:    DefaultKeyMap(),
		width:   defaultWidth,
		height:  defaultHeight,
		form:    newForm(),
		pending: make(map[string]bool),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styleBusy),
		),
		viewport: vp,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refresh()
		return m, nil

	case LogUpdatedMsg, SessionChangedMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authDoneMsg:
		m.authBusy = false
		m.handleAuthResult(msg)
		m.refresh()
		return m, nil

	case dispatchDoneMsg:
		m.pending = withPending(m.pending, msg.command.Name, false)
		m.refresh()
		return m, nil

	case logoutDoneMsg:
		m.registering = false
		m.refresh()
		return m, m.form.reset()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.showingForm() {
		var cmd tea.Cmd
		m.form, cmd = m.form.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.modal != "" {
		if key.Matches(msg, m.keys.Acknowledge) {
			m.errors.Acknowledge()
			m.modal = ""
			m.refresh()
		}
		return m, nil
	}

	if m.showingForm() {
		return m.handleFormKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Run):
		return m.dispatchSelected()
	case key.Matches(msg, m.keys.NewOperator):
		m.registering = true
		return m, m.form.reset()
	case key.Matches(msg, m.keys.Logout):
		return m, m.logout()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		return m, m.form.cycle()
	case key.Matches(msg, m.keys.Back):
		if m.registering && !m.authBusy {
			m.registering = false
		}
		return m, nil
	case key.Matches(msg, m.keys.Register):
		return m.submit(true)
	case key.Matches(msg, m.keys.Submit):
		return m.submit(m.registering)
	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m Model) submit(register bool) (tea.Model, tea.Cmd) {
	if m.authBusy {
		return m, nil
	}

	username, password := m.form.values()
	if username == "" || password == "" {
		m.form.err = "Enter a username and a password."
		return m, nil
	}

	m.form.err = ""
	m.authBusy = true
	ctx, console := m.ctx, m.console
	action := func() tea.Msg {
		var err error
		if register {
			err = console.Register(ctx, username, password)
		} else {
			err = console.Login(ctx, username, password)
		}
		return authDoneMsg{register: register, username: username, err: err}
	}
	return m, tea.Batch(action, m.spinner.Tick)
}

func (m *Model) handleAuthResult(msg authDoneMsg) {
	if msg.err == nil {
		m.registering = false
		_ = m.form.reset()
		return
	}

	switch {
	case errors.Is(msg.err, domain.ErrInvalidInput):
		m.form.err = "Username or password is not acceptable."
	case errors.Is(msg.err, domain.ErrInvalidTransition):
		m.form.err = ""
	default:
		// Rejections surface through the error modal, transport failures
		// through the activity log.
		m.form.err = ""
		m.form.password.Reset()
	}
}

// withPending returns a copy of pending with name added or removed, so models
// copied by bubbletea never share the set.
func withPending(pending map[string]bool, name string, on bool) map[string]bool {
	next := make(map[string]bool, len(pending)+1)
	for k := range pending {
		next[k] = true
	}
	if on {
		next[name] = true
	} else {
		delete(next, name)
	}
	return next
}

func (m Model) dispatchSelected() (tea.Model, tea.Cmd) {
	if len(m.jobs) == 0 {
		return m, nil
	}

	command := m.jobs[m.cursor].Command
	if m.pending[command.Name] {
		return m, nil
	}

	wasBusy := m.busy()
	m.pending = withPending(m.pending, command.Name, true)
	ctx, console := m.ctx, m.console
	action := func() tea.Msg {
		_, err := console.Dispatch(ctx, command)
		return dispatchDoneMsg{command: command, err: err}
	}
	if wasBusy {
		return m, action
	}
	return m, tea.Batch(action, m.spinner.Tick)
}

func (m Model) logout() tea.Cmd {
	ctx, console := m.ctx, m.console
	return func() tea.Msg {
		return logoutDoneMsg{err: console.Logout(ctx)}
	}
}

// refresh re-reads session, log and error state. Scrolling follows new
// entries only while the log is already at the bottom.
func (m *Model) refresh() {
	if m.session != nil {
		m.state = m.session.State()
		m.operator = ""
		if credential, ok := m.session.Active(); ok {
			m.operator = credential.Username
		}
	}
	m.layout()

	if m.errors != nil {
		if pending, ok := m.errors.Pending(); ok {
			m.modal = pending.Message
		} else {
			m.modal = ""
		}
	}

	if m.log != nil {
		atBottom := m.viewport.AtBottom()
		m.viewport.SetContent(logContent(m.log.Snapshot()))
		if atBottom {
			m.viewport.GotoBottom()
		}
	}
}

func (m *Model) layout() {
	logWidth := m.width - menuWidth - 4
	if m.showingForm() {
		logWidth = m.width - 4
	}
	if logWidth < 20 {
		logWidth = 20
	}
	logHeight := m.height - 6
	if m.showingForm() {
		logHeight = m.height - 16
	}
	if logHeight < 3 {
		logHeight = 3
	}
	m.viewport.Width = logWidth
	m.viewport.Height = logHeight
}

func (m Model) showingForm() bool {
	return m.state != domain.SessionLoggedIn || m.registering
}

func (m Model) busy() bool {
	return m.authBusy || len(m.pending) > 0
}

// Busy reports whether an authentication or a dispatch is in flight.
func (m Model) Busy() bool {
	return m.busy()
}

func (m Model) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		styleTitle.Render("Buswork Console"),
		"  ",
		styleDim.Render(m.sessionLabel()),
	)

	var body string
	switch {
	case m.modal != "":
		body = m.modalView()
	case m.showingForm():
		body = m.formView()
	default:
		body = m.dashboardView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", styleHelp.Render(m.helpLine()))
}

func (m Model) sessionLabel() string {
	switch m.state {
	case domain.SessionLoggedIn:
		if m.operator == "" {
			return "logged in"
		}
		return "logged in as " + m.operator
	case domain.SessionLoggingIn:
		return "logging in"
	case domain.SessionRegistering:
		return "registering"
	default:
		return "logged out"
	}
}

func (m Model) formView() string {
	title, hint := "Log in", "enter log in · ctrl+r register · tab next field"
	if m.registering {
		title, hint = "Register a new operator", "enter register · tab next field · esc back"
	}

	content := m.form.view(title, hint)
	if m.authBusy {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", m.spinner.View()+" Working...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		stylePane.Render(content),
		stylePane.Render(m.viewport.View()),
	)
}

func (m Model) dashboardView() string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		stylePane.Width(menuWidth).Render(m.menuView()),
		stylePane.Render(m.viewport.View()),
	)
}

func (m Model) menuView() string {
	lines := []string{styleAccent.Render("Jobs"), ""}
	var platform domain.Platform
	for i, spec := range m.jobs {
		if spec.Platform != platform {
			platform = spec.Platform
			lines = append(lines, styleDim.Render(string(platform)))
		}

		marker := "  "
		if m.pending[spec.Command.Name] {
			marker = m.spinner.View() + " "
		}

		label := "  " + spec.Label
		if i == m.cursor {
			label = styleSelected.Render("> " + spec.Label)
		}
		lines = append(lines, marker+label)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) modalView() string {
	box := styleModal.Render(lipgloss.JoinVertical(lipgloss.Left,
		styleError.Render("Authentication failed"),
		"",
		m.modal,
		"",
		styleHelp.Render("enter to dismiss"),
	))
	return lipgloss.Place(m.width, m.height-4, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) helpLine() string {
	if m.modal != "" {
		return "enter dismiss · ctrl+c quit"
	}
	if m.showingForm() {
		return "pgup/pgdn scroll log · ctrl+c quit"
	}
	return fmt.Sprintf("↑/↓ select · enter run · n new operator · L log out · pgup/pgdn scroll log · ctrl+c quit · %d running", len(m.pending))
}

func logContent(entries []domain.LogEntry) string {
	if len(entries) == 0 {
		return styleDim.Render("No activity yet.")
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, console.FormatEntry(entry))
	}
	return strings.Join(lines, "\n")
}
