package pass

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		key: DefaultKey,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "buswork/session"}, args)
			assert.Equal(t, "tok123\nusername: ops\nissued_at: 2026-10-17T09:00:00Z\n", input)
			return "", "", nil
		},
	}

	err := store.Save(context.Background(), domain.Credential{
		Token:    "tok123",
		Username: "ops",
		IssuedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreLoadParsesEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		key: DefaultKey,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "buswork/session"}, args)
			assert.Empty(t, input)
			return "tok123\r\nusername: ops\r\nissued_at: 2026-10-17T09:00:00Z\r\n", "", nil
		},
	}

	credential, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Credential{
		Token:    "tok123",
		Username: "ops",
		IssuedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}, credential)
}

func TestStoreLoadMissingEntryIsNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		key: DefaultKey,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: buswork/session is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
	require.NoError(t, store.Clear(context.Background()))
}

func TestStoreClearUsesPassRemove(t *testing.T) {
	t.Parallel()

	store := &Store{
		key: "team/buswork",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "team/buswork"}, args)
			return "", "", nil
		},
	}

	require.NoError(t, store.Clear(context.Background()))
}

func TestStoreWrapsCommandFailure(t *testing.T) {
	t.Parallel()

	store := &Store{
		key: DefaultKey,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
		},
	}

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, `pass show "buswork/session": exit status 2: gpg: decryption failed`)
	assert.NotErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreUnavailableSurfacesSentinel(t *testing.T) {
	t.Parallel()

	store := &Store{
		key: DefaultKey,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "", ErrUnavailable
		},
	}

	err := store.Save(context.Background(), domain.Credential{Token: "tok"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestStoreEntryPathHonorsStoreDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PASSWORD_STORE_DIR", dir)

	path, err := NewStore("").EntryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "buswork", "session.gpg"), path)
}
