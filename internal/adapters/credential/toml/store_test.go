package toml

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "session.toml")
	config := viper.New()
	config.Set(SessionPathKey, path)

	store, err := NewStore(config)
	require.NoError(t, err)
	return store, path
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	issuedAt := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	credential := domain.Credential{Token: "tok123", Username: "ops", IssuedAt: issuedAt}

	require.NoError(t, store.Save(context.Background(), credential))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, credential, got)
	assert.Equal(t, path, store.Path())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(sessionFileMode), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "token = 'tok123'")
}

func TestStoreLoadMissingFileIsNotFound(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreClearRemovesFileAndIsIdempotent(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), domain.Credential{Token: "tok123"}))

	require.NoError(t, store.Clear(context.Background()))
	require.NoError(t, store.Clear(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreRejectsEmptyCredential(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.Error(t, store.Save(context.Background(), domain.Credential{}))
}

func TestStoreRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("version = 9\n[session]\ntoken = 'x'\n"), 0o600))

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "unsupported session schema version 9")
}

func TestStoreRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "decode session file")
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Save(ctx, domain.Credential{Token: "tok"}), context.Canceled)
	_, err := store.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Clear(ctx), context.Canceled)
}

func TestStoreConcurrentSavesLeaveNoTempFiles(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Save(context.Background(), domain.Credential{Token: strings.Repeat("t", i+1)}))
		}(i)
	}
	wg.Wait()

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, got.Token)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.toml", entries[0].Name())
}

func TestWatcherReportsRemovalButNotReplacement(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), domain.Credential{Token: "first"}))

	removed := make(chan struct{}, 4)
	watcher, err := NewWatcher(path, func() { removed <- struct{}{} }, zerolog.Nop())
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, store.Save(context.Background(), domain.Credential{Token: "second"}))
	select {
	case <-removed:
		t.Fatal("atomic replacement reported as removal")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, store.Clear(context.Background()))
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("removal not reported")
	}
}
