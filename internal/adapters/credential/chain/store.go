package chain

import (
	"context"
	"errors"
	"fmt"

	passstore "github.com/bnema/buswork-cli/internal/adapters/credential/pass"
	tomlstore "github.com/bnema/buswork-cli/internal/adapters/credential/toml"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
)

// Store reads and writes through primary, falling back when it fails. Clear
// always clears both so a stale copy can never be restored.
type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(passKey string, file *tomlstore.Store) (*Store, error) {
	return NewStore(passstore.NewStore(passKey), file)
}

func (s *Store) Save(ctx context.Context, credential domain.Credential) error {
	err := s.primary.Save(ctx, credential)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Save(ctx, credential)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary store save failed: %w; fallback store save failed: %w", err, fallbackErr)
}

func (s *Store) Load(ctx context.Context) (domain.Credential, error) {
	credential, err := s.primary.Load(ctx)
	if err == nil {
		return credential, nil
	}
	if shouldSkipFallback(err) {
		return domain.Credential{}, err
	}

	fallbackCredential, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr == nil {
		return fallbackCredential, nil
	}

	if errors.Is(fallbackErr, domain.ErrCredentialNotFound) {
		if errors.Is(err, domain.ErrCredentialNotFound) || errors.Is(err, passstore.ErrUnavailable) {
			return domain.Credential{}, domain.ErrCredentialNotFound
		}
	}

	return domain.Credential{}, fmt.Errorf("primary store load failed: %w; fallback store load failed: %w", err, fallbackErr)
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.primary.Clear(ctx)
	if err != nil && shouldSkipFallback(err) {
		return err
	}
	if errors.Is(err, passstore.ErrUnavailable) {
		err = nil
	}

	return errors.Join(err, s.fallback.Clear(ctx))
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
