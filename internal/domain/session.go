package domain

import "time"

type SessionState string

const (
	SessionLoggedOut   SessionState = "logged_out"
	SessionLoggingIn   SessionState = "logging_in"
	SessionLoggedIn    SessionState = "logged_in"
	SessionRegistering SessionState = "registering"
)

func (s SessionState) String() string {
	return string(s)
}

// Credential is the durable proof of authentication. An empty Token means the
// backend authenticated the session without issuing one.
type Credential struct {
	Token    string
	Username string
	IssuedAt time.Time
}

func (c Credential) Empty() bool {
	return c.Token == ""
}
