package console

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

// Status is the view model for the session summary.
type Status struct {
	State           domain.SessionState
	Username        string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	APIURL          string
	Transport       string
	CredentialStore string
}

var progressPattern = regexp.MustCompile(`(\d{1,3})% done`)

var failureMarkers = []string{" rejected: ", " failed: ", "Login failed", "Registration failed", "Progress channel lost", "Progress channel closed", "Progress channel unavailable"}

func statusView(status Status, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Buswork Console"),
		s.header.Render(fmt.Sprintf("api: %s (%s)", valueOr(status.APIURL, "unset"), valueOr(status.Transport, "sse"))),
	}

	session := []string{
		field("session:", stateLabel(status.State), s),
	}
	if status.State == domain.SessionLoggedIn {
		session = append(session, field("operator:", valueOr(status.Username, "unknown"), s))
		if !status.IssuedAt.IsZero() {
			session = append(session, field("issued:", formatTime(status.IssuedAt, opts.Now), s))
		}
		if !status.ExpiresAt.IsZero() {
			session = append(session, expiryLine(status.ExpiresAt, opts.Now, s))
		}
	}
	if status.CredentialStore != "" {
		session = append(session, field("stored in:", status.CredentialStore, s))
	}

	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, session...)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func jobsView(specs []domain.JobSpec, s styles) string {
	lines := []string{
		s.title.Render("Available jobs"),
		s.header.Render(fmt.Sprintf("jobs: %d", len(specs))),
	}

	if len(specs) == 0 {
		lines = append(lines, s.empty.Render("No jobs available."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	var order []domain.Platform
	grouped := make(map[domain.Platform][]domain.JobSpec)
	for _, spec := range specs {
		if _, seen := grouped[spec.Platform]; !seen {
			order = append(order, spec.Platform)
		}
		grouped[spec.Platform] = append(grouped[spec.Platform], spec)
	}

	width := 0
	for _, spec := range specs {
		if n := len(spec.Command.Name); n > width {
			width = n
		}
	}

	for _, platform := range order {
		block := []string{s.platform.Render(string(platform))}
		for _, spec := range grouped[platform] {
			name := s.command.Render(fmt.Sprintf("%-*s", width, spec.Command.Name))
			block = append(block, lipgloss.JoinHorizontal(lipgloss.Top, "  ", name, "  ", s.detail.Render(spec.Label)))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, block...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func logView(entries []domain.LogEntry, s styles) string {
	if len(entries) == 0 {
		return s.empty.Render("No activity yet.")
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, formatEntry(entry, s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// FormatEntry styles a single log line for streaming output.
func FormatEntry(entry domain.LogEntry) string {
	return formatEntry(entry, newStyles())
}

func formatEntry(entry domain.LogEntry, s styles) string {
	if isFailure(entry) {
		return s.warning.Render(entry)
	}

	percent, ok := ProgressPercent(entry)
	if !ok {
		return s.detail.Render(entry)
	}

	bar := renderProgressBar(percent, 20, s)
	text := lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100)).Render(entry)
	return lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", text)
}

// ProgressPercent extracts the completion percentage from a progress line
// such as "Update prices (Buswork): 50% done". Completed lines report 100.
func ProgressPercent(entry domain.LogEntry) (float64, bool) {
	if strings.HasSuffix(strings.TrimSpace(entry), ": completed") {
		return 100, true
	}

	match := progressPattern.FindStringSubmatch(entry)
	if match == nil {
		return 0, false
	}

	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return clampPercent(float64(value)), true
}

func isFailure(entry domain.LogEntry) bool {
	for _, marker := range failureMarkers {
		if strings.Contains(entry, marker) {
			return true
		}
	}
	return false
}

func renderProgressBar(donePercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	done := clampPercent(donePercent)
	filled := int(math.Round(float64(width) * done / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func field(label, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(fmt.Sprintf("%-10s", label)), " ", s.detail.Render(value))
}

func expiryLine(expiresAt, now time.Time, s styles) string {
	label := formatExpiryRelative(expiresAt, now)
	if !now.IsZero() && !expiresAt.After(now) {
		return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(fmt.Sprintf("%-10s", "expires:")), " ", s.warning.Render(label))
	}
	return field("expires:", label, s)
}

func stateLabel(state domain.SessionState) string {
	switch state {
	case domain.SessionLoggedIn:
		return "logged in"
	case domain.SessionLoggingIn:
		return "logging in"
	case domain.SessionRegistering:
		return "registering"
	default:
		return "logged out"
	}
}

func formatTime(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := at.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return at.Format("15:04")
	}

	return at.Format("15:04 on 02 Jan")
}

func formatExpiryRelative(expiresAt, now time.Time) string {
	if now.IsZero() {
		return formatTime(expiresAt, now)
	}

	if !expiresAt.After(now) {
		return "expired " + formatTime(expiresAt, now)
	}

	remaining := expiresAt.Sub(now)
	if remaining < 24*time.Hour {
		hours := int(math.Ceil(remaining.Hours()))
		if hours < 1 {
			hours = 1
		}
		suffix := "hours"
		if hours == 1 {
			suffix = "hour"
		}
		return fmt.Sprintf("in %d %s (%s)", hours, suffix, expiresAt.Format("15:04"))
	}

	days := int(math.Ceil(remaining.Hours() / 24))
	suffix := "days"
	if days == 1 {
		suffix = "day"
	}

	return fmt.Sprintf("in %d %s (%s)", days, suffix, expiresAt.Format("15:04 on 02 Jan"))
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	interpolated := 240.0 + (255.0-240.0)*normalized
	return lipgloss.Color(fmt.Sprintf("%d", int(interpolated)))
}
