package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/bnema/buswork-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, store *memoryCredentialStore, retain bool) (*Console, *mocks.MockBackend, *fakeSource) {
	t.Helper()
	return newTestConsoleWithStore(t, store, retain)
}

func newTestConsoleWithStore(t *testing.T, store ports.CredentialStore, retain bool) (*Console, *mocks.MockBackend, *fakeSource) {
	t.Helper()

	backend := mocks.NewMockBackend(t)
	source := newFakeSource()
	console := NewConsole(ConsoleConfig{
		Store:             store,
		Backend:           backend,
		Progress:          source,
		Reconnect:         fastPolicy(),
		RetainLogOnLogout: retain,
		SessionID:         "test-session",
	})
	t.Cleanup(console.Close)

	return console, backend, source
}

func TestConsoleLoginDispatchAndProgressShareOneLog(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{}
	console, backend, source := newTestConsole(t, store, false)
	backend.EXPECT().Login(mock.Anything, "ops", "secret").Return("tok123", nil).Once()
	backend.EXPECT().
		Dispatch(mock.Anything, mock.MatchedBy(func(c domain.Credential) bool { return c.Token == "tok123" }), domain.CommandEcommerce2PriceUpdate).
		Return("job accepted", nil).Once()

	require.NoError(t, console.Login(context.Background(), "ops", "secret"))
	assert.Equal(t, "tok123", store.stored().Token)
	sub := source.next(t)

	message, err := console.Dispatch(context.Background(), domain.CommandEcommerce2PriceUpdate)
	require.NoError(t, err)
	assert.Equal(t, "job accepted", message)

	sub.push(t, "50% done", "1")

	assert.Equal(t, []domain.LogEntry{"job accepted", "50% done"}, waitForLog(t, console.Log, 2))
}

func TestConsoleEventBeforeAcceptanceKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, backend, source := newTestConsole(t, store, false)

	restored, err := console.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, restored)
	sub := source.next(t)

	backend.EXPECT().Dispatch(mock.Anything, mock.Anything, domain.CommandEcommerce2PriceUpdate).
		RunAndReturn(func(context.Context, domain.Credential, domain.JobCommand) (string, error) {
			sub.push(t, "50% done", "1")
			require.Eventually(t, func() bool { return console.Log.Len() == 1 }, time.Second, time.Millisecond)
			return "job accepted", nil
		}).Once()

	_, err = console.Dispatch(context.Background(), domain.CommandEcommerce2PriceUpdate)
	require.NoError(t, err)

	assert.Equal(t, []domain.LogEntry{"50% done", "job accepted"}, console.Log.Snapshot())
}

func TestConsoleInterleavedDispatchesAndEventsLoseNothing(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, backend, source := newTestConsole(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	sub := source.next(t)

	const dispatches, events = 40, 60
	backend.EXPECT().Dispatch(mock.Anything, mock.Anything, mock.Anything).Return("job accepted", nil).Times(dispatches)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		catalogue := domain.Catalogue()
		for i := 0; i < dispatches; i++ {
			_, err := console.Dispatch(context.Background(), catalogue[i%len(catalogue)].Command)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < events; i++ {
			sub.push(t, fmt.Sprintf("event %d", i), fmt.Sprint(i+1))
		}
	}()
	wg.Wait()

	entries := waitForLog(t, console.Log, dispatches+events)
	assert.Len(t, entries, dispatches+events)

	next := 0
	for _, entry := range entries {
		if entry == "job accepted" {
			continue
		}
		assert.Equal(t, fmt.Sprintf("event %d", next), entry)
		next++
	}
	assert.Equal(t, events, next)
}

func TestConsoleLogoutClosesChannelAndClearsLog(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, _, source := newTestConsole(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	sub := source.next(t)
	sub.push(t, "10% done", "1")
	waitForLog(t, console.Log, 1)

	require.NoError(t, console.Logout(context.Background()))

	assert.Equal(t, domain.SessionLoggedOut, console.Session.State())
	assert.False(t, console.Channel.Active())
	assert.Empty(t, console.Log.Snapshot())
	assert.True(t, store.stored().Empty())
	select {
	case <-sub.closed:
	default:
		t.Fatal("subscription left open after logout")
	}

	restored, err := console.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestConsoleDispatchResultAfterLogoutIsNotLogged(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		message string
		err     error
	}{
		{name: "accepted", message: "job accepted"},
		{name: "rejected", err: &domain.Rejection{Kind: domain.ErrDispatchRejected, Status: 409, Message: "already running"}},
		{name: "transport failure", err: fmt.Errorf("%w: connection reset", domain.ErrTransport)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
			console, backend, source := newTestConsole(t, store, false)
			_, err := console.Restore(context.Background())
			require.NoError(t, err)
			source.next(t)

			called := make(chan struct{})
			release := make(chan struct{})
			backend.EXPECT().Dispatch(mock.Anything, mock.Anything, domain.CommandEcommerce2PriceUpdate).
				RunAndReturn(func(context.Context, domain.Credential, domain.JobCommand) (string, error) {
					close(called)
					<-release
					return tc.message, tc.err
				}).Once()

			done := make(chan error, 1)
			go func() {
				_, err := console.Dispatch(context.Background(), domain.CommandEcommerce2PriceUpdate)
				done <- err
			}()
			awaitSignal(t, called, "dispatch to reach the backend")

			require.NoError(t, console.Logout(context.Background()))
			close(release)

			err = <-done
			if tc.err != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, domain.SessionLoggedOut, console.Session.State())
			assert.Empty(t, console.Log.Snapshot())
		})
	}
}

func TestConsoleDispatchResultDoesNotLeakIntoNextSession(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "old-token"}}
	console, backend, source := newTestConsole(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	source.next(t)

	called := make(chan struct{})
	release := make(chan struct{})
	backend.EXPECT().Dispatch(mock.Anything, mock.Anything, domain.CommandEcommerce2PriceUpdate).
		RunAndReturn(func(context.Context, domain.Credential, domain.JobCommand) (string, error) {
			close(called)
			<-release
			return "job accepted", nil
		}).Once()
	backend.EXPECT().Login(mock.Anything, "ops", "secret").Return("tok123", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := console.Dispatch(context.Background(), domain.CommandEcommerce2PriceUpdate)
		done <- err
	}()
	awaitSignal(t, called, "dispatch to reach the backend")

	require.NoError(t, console.Logout(context.Background()))
	require.NoError(t, console.Login(context.Background(), "ops", "secret"))
	source.next(t)
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, console.Log.Snapshot())
}

func TestConsoleLoginDuringLogoutKeepsNewSession(t *testing.T) {
	t.Parallel()

	store := newGatedClearStore(domain.Credential{Token: "old-token", Username: "old"})
	console, backend, source := newTestConsoleWithStore(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	oldSub := source.next(t)

	loginCalled := make(chan struct{})
	backend.EXPECT().Login(mock.Anything, "ops", "secret").
		RunAndReturn(func(context.Context, string, string) (string, error) {
			close(loginCalled)
			return "tok123", nil
		}).Once()

	logoutDone := make(chan error, 1)
	go func() { logoutDone <- console.Logout(context.Background()) }()
	awaitSignal(t, store.entered, "logout to start clearing the credential")

	loginDone := make(chan error, 1)
	go func() { loginDone <- console.Login(context.Background(), "ops", "secret") }()
	awaitSignal(t, loginCalled, "login to reach the backend")

	close(store.release)
	require.NoError(t, <-logoutDone)
	require.NoError(t, <-loginDone)

	assert.Equal(t, domain.SessionLoggedIn, console.Session.State())
	assert.Equal(t, "tok123", store.stored().Token)
	assert.True(t, console.Channel.Active())
	awaitSignal(t, oldSub.closed, "the old subscription to close")

	newSub := source.next(t)
	select {
	case <-newSub.closed:
		t.Fatal("subscription of the new session was closed")
	default:
	}
}

func TestConsoleLogoutRetainsLogWhenConfigured(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, _, source := newTestConsole(t, store, true)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	source.next(t).push(t, "10% done", "1")
	waitForLog(t, console.Log, 1)

	require.NoError(t, console.Logout(context.Background()))

	assert.Equal(t, []domain.LogEntry{"10% done"}, console.Log.Snapshot())
}

func TestConsoleLoginRejectionShowsModalAndOpensNothing(t *testing.T) {
	t.Parallel()

	console, backend, source := newTestConsole(t, &memoryCredentialStore{}, false)
	backend.EXPECT().Login(mock.Anything, "a", "wrong").
		Return("", &domain.Rejection{Kind: domain.ErrAuthRejected, Status: 401, Message: "invalid credentials"}).Once()

	err := console.Login(context.Background(), "a", "wrong")

	require.ErrorIs(t, err, domain.ErrAuthRejected)
	assert.Equal(t, "invalid credentials", console.Errors.Message())
	assert.Equal(t, domain.SessionLoggedOut, console.Session.State())
	assert.False(t, console.Channel.Active())
	assert.Empty(t, source.subscribeCursors())
}

func TestConsoleReconnectDoesNotDuplicateDeliveredEvents(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, _, source := newTestConsole(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)

	first := source.next(t)
	first.push(t, "10% done", "1")
	first.push(t, "50% done", "2")
	first.drop(errors.New("unexpected EOF"))

	second := source.next(t)
	second.push(t, "90% done", "3")

	entries := waitForLog(t, console.Log, 5)
	assert.Equal(t, []domain.LogEntry{
		"10% done",
		"50% done",
		"Progress channel lost: unexpected EOF",
		"Progress channel restored (attempt 1/3)",
		"90% done",
	}, entries)
	assert.Equal(t, []string{"", "2"}, source.subscribeCursors())
}

func TestConsoleCredentialRevokedLogsOut(t *testing.T) {
	t.Parallel()

	store := &memoryCredentialStore{credential: domain.Credential{Token: "tok123"}}
	console, _, source := newTestConsole(t, store, false)
	_, err := console.Restore(context.Background())
	require.NoError(t, err)
	source.next(t)

	require.NoError(t, console.CredentialRevoked(context.Background()))

	assert.Equal(t, domain.SessionLoggedOut, console.Session.State())
	assert.Equal(t, []domain.LogEntry{"Signed out: the stored session was removed"}, console.Log.Snapshot())

	require.NoError(t, console.CredentialRevoked(context.Background()))
	assert.Len(t, console.Log.Snapshot(), 1)
}

func TestConsoleGeneratesSessionID(t *testing.T) {
	t.Parallel()

	console := NewConsole(ConsoleConfig{Store: &memoryCredentialStore{}, Backend: mocks.NewMockBackend(t), Progress: newFakeSource()})
	defer console.Close()

	assert.Len(t, console.SessionID, 36)
	assert.Equal(t, domain.SessionLoggedOut, console.Session.State())
}
