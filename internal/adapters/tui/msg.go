package tui

import "github.com/bnema/buswork-cli/internal/domain"

// LogUpdatedMsg is sent whenever the activity log changed.
type LogUpdatedMsg struct{}

// SessionChangedMsg is sent when the session may have changed outside the
// dashboard, for example after the stored credential was removed.
type SessionChangedMsg struct{}

type authDoneMsg struct {
	register bool
	username string
	err      error
}

type dispatchDoneMsg struct {
	command domain.JobCommand
	err     error
}

type logoutDoneMsg struct {
	err error
}
