package tui

import "github.com/charmbracelet/lipgloss"

var (
	styleTitle    = lipgloss.NewStyle().Bold(true)
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleAccent   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleSelected = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159"))
	styleBusy     = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	styleError    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	styleHelp     = lipgloss.NewStyle().Faint(true)
	stylePane     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	styleModal    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("203")).Padding(1, 2)
)
