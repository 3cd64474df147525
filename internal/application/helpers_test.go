package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/stretchr/testify/require"
)

type memoryCredentialStore struct {
	mu         sync.Mutex
	credential domain.Credential
	saves      int
	clears     int
}

func (s *memoryCredentialStore) Load(context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential.Empty() {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return s.credential, nil
}

func (s *memoryCredentialStore) Save(_ context.Context, credential domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.saves++
	return nil
}

func (s *memoryCredentialStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = domain.Credential{}
	s.clears++
	return nil
}

func (s *memoryCredentialStore) stored() domain.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// gatedClearStore holds every Clear until release is closed. entered is
// closed when the first Clear starts.
type gatedClearStore struct {
	*memoryCredentialStore
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func newGatedClearStore(credential domain.Credential) *gatedClearStore {
	return &gatedClearStore{
		memoryCredentialStore: &memoryCredentialStore{credential: credential},
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
}

func (s *gatedClearStore) Clear(ctx context.Context) error {
	s.enteredOnce.Do(func() { close(s.entered) })
	<-s.release
	return s.memoryCredentialStore.Clear(ctx)
}

// awaitSignal fails the test if ch is not closed in time.
func awaitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// fakeSource hands out channel-driven subscriptions. Queued errors are
// returned by Subscribe in order before subscriptions succeed again.
type fakeSource struct {
	mu      sync.Mutex
	cursors []string
	errs    []error
	subs    chan *fakeSubscription
}

func newFakeSource(errs ...error) *fakeSource {
	return &fakeSource{errs: errs, subs: make(chan *fakeSubscription, 16)}
}

func (s *fakeSource) Subscribe(_ context.Context, _ domain.Credential, cursor string) (ports.Subscription, error) {
	s.mu.Lock()
	s.cursors = append(s.cursors, cursor)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	sub := &fakeSubscription{
		events: make(chan ports.Delivery),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	s.subs <- sub
	return sub, nil
}

func (s *fakeSource) subscribeCursors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cursors))
	copy(out, s.cursors)
	return out
}

func (s *fakeSource) next(t *testing.T) *fakeSubscription {
	t.Helper()
	select {
	case sub := <-s.subs:
		return sub
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription opened")
		return nil
	}
}

type fakeSubscription struct {
	events    chan ports.Delivery
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeSubscription) Next(ctx context.Context) (ports.Delivery, error) {
	select {
	case <-ctx.Done():
		return ports.Delivery{}, ctx.Err()
	case err := <-s.fail:
		return ports.Delivery{}, err
	case delivery := <-s.events:
		return delivery, nil
	}
}

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// push blocks until the reader has taken the event.
func (s *fakeSubscription) push(t *testing.T, message, cursor string) {
	t.Helper()
	select {
	case s.events <- ports.Delivery{Event: domain.ProgressEvent{Message: message}, Cursor: cursor}:
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not take %q", message)
	}
}

func (s *fakeSubscription) drop(err error) {
	s.fail <- err
}

type fixedTime struct {
	now time.Time
}

func (c fixedTime) Now() time.Time {
	return c.now
}

func fastPolicy() ReconnectPolicy {
	return ReconnectPolicy{InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, MaxAttempts: 3}
}

func waitForLog(t *testing.T, log *LogAggregator, want int) []domain.LogEntry {
	t.Helper()
	require.Eventually(t, func() bool { return log.Len() >= want }, 2*time.Second, time.Millisecond)
	return log.Snapshot()
}
