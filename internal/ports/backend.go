package ports

import (
	"context"

	"github.com/bnema/buswork-cli/internal/domain"
)

// Backend is the REST side of the job backend. Refusals are returned as
// *domain.Rejection; anything else wraps domain.ErrTransport.
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	// Register returns the issued token, or "" when the backend issues none.
	Register(ctx context.Context, username, password string) (string, error)
	Dispatch(ctx context.Context, credential domain.Credential, command domain.JobCommand) (string, error)
}
