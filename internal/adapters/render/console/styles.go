package console

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title        lipgloss.Style
	header       lipgloss.Style
	platform     lipgloss.Style
	command      lipgloss.Style
	detail       lipgloss.Style
	warning      lipgloss.Style
	success      lipgloss.Style
	section      lipgloss.Style
	empty        lipgloss.Style
	key          lipgloss.Style
	meta         lipgloss.Style
	barBracket   lipgloss.Style
	barFill      lipgloss.Style
	barEmpty     lipgloss.Style
	barTextFaint lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:        lipgloss.NewStyle().Bold(true),
		header:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		platform:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		command:      lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		detail:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		success:      lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		section:      lipgloss.NewStyle().MarginTop(1),
		empty:        lipgloss.NewStyle().Faint(true),
		key:          lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		barBracket:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:      lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:     lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		barTextFaint: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}
