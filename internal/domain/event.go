package domain

// ProgressEvent is an opaque status line pushed by the backend. It carries no
// job id, so it cannot be matched to the dispatch that caused it.
type ProgressEvent struct {
	Message string
}

type LogEntry = string

type AuthError struct {
	Message string
}

func (e AuthError) Error() string {
	return e.Message
}
