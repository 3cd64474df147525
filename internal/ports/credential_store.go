package ports

import (
	"context"

	"github.com/bnema/buswork-cli/internal/domain"
)

// CredentialStore is the durable slot holding the session credential. Load
// returns domain.ErrCredentialNotFound when the slot is empty.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Credential, error)
	Save(ctx context.Context, credential domain.Credential) error
	Clear(ctx context.Context) error
}
