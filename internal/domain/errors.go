package domain

import "errors"

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrUnknownCommand     = errors.New("unknown job command")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrInvalidInput       = errors.New("invalid input")

	ErrAuthRejected         = errors.New("authentication rejected")
	ErrRegistrationRejected = errors.New("registration rejected")
	ErrDispatchRejected     = errors.New("job command rejected")
	ErrTransport            = errors.New("backend unreachable")
	ErrChannel              = errors.New("progress channel failure")
)
