package application

import (
	"sync"

	"github.com/bnema/buswork-cli/internal/domain"
)

// ErrorSurface holds at most one pending authentication error. A new Raise
// replaces the pending one; only Acknowledge clears it.
type ErrorSurface struct {
	mu      sync.Mutex
	pending *domain.AuthError
}

func NewErrorSurface() *ErrorSurface {
	return &ErrorSurface{}
}

func (e *ErrorSurface) Raise(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = &domain.AuthError{Message: message}
}

func (e *ErrorSurface) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

func (e *ErrorSurface) HasError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// Message returns the pending error text, or "" when idle.
func (e *ErrorSurface) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return ""
	}
	return e.pending.Message
}

// Pending returns the pending error and whether one is showing.
func (e *ErrorSurface) Pending() (domain.AuthError, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return domain.AuthError{}, false
	}
	return *e.pending, true
}
