package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SessionObserver is told when the session enters and leaves LoggedIn. Both
// calls happen outside the state lock but inside the transition lock, so they
// never interleave.
type SessionObserver interface {
	SessionStarted(credential domain.Credential)
	SessionEnded()
}

type credentialsInput struct {
	Username string `validate:"required,max=128"`
	Password string `validate:"required,max=256"`
}

type SessionStore struct {
	store    ports.CredentialStore
	backend  ports.Backend
	log      *LogAggregator
	errors   *ErrorSurface
	validate *validator.Validate
	logger   zerolog.Logger
	metrics  *observability.Metrics
	clock    ports.Clock

	// transition serializes the durable slot, the observer and the state
	// change of one transition against those of any other.
	transition sync.Mutex

	mu         sync.Mutex
	state      domain.SessionState
	credential domain.Credential
	// epoch changes on every transition out of LoggedIn so that a login or
	// registration completing after a logout does not resurrect the session.
	epoch    uint64
	observer SessionObserver
}

func NewSessionStore(store ports.CredentialStore, backend ports.Backend, log *LogAggregator, surface *ErrorSurface, opts ...Option) *SessionStore {
	o := buildOptions(opts)
	return &SessionStore{
		store:    store,
		backend:  backend,
		log:      log,
		errors:   surface,
		validate: validator.New(),
		logger:   o.logger,
		metrics:  o.metrics,
		clock:    o.clock,
		state:    domain.SessionLoggedOut,
	}
}

// Observe registers the single observer of LoggedIn transitions.
func (s *SessionStore) Observe(observer SessionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

func (s *SessionStore) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the credential when the session is LoggedIn.
func (s *SessionStore) Active() (domain.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionLoggedIn {
		return domain.Credential{}, false
	}
	return s.credential, true
}

func (s *SessionStore) activeSession() (domain.Credential, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionLoggedIn {
		return domain.Credential{}, 0, false
	}
	return s.credential, s.epoch, true
}

// whileCurrent runs fn only if the session that was LoggedIn at epoch still
// is. No logout completes while fn runs.
func (s *SessionStore) whileCurrent(epoch uint64, fn func()) bool {
	s.transition.Lock()
	defer s.transition.Unlock()
	if !s.current(epoch, domain.SessionLoggedIn) {
		return false
	}
	fn()
	return true
}

// Restore enters LoggedIn from a persisted credential without contacting the
// backend. It reports whether a credential was found.
func (s *SessionStore) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != domain.SessionLoggedOut {
		state := s.state
		s.mu.Unlock()
		if state == domain.SessionLoggedIn {
			return true, nil
		}
		return false, fmt.Errorf("%w: restore while %s", domain.ErrInvalidTransition, state)
	}
	epoch := s.epoch
	s.mu.Unlock()

	credential, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load credential: %w", err)
	}
	if credential.Empty() {
		return false, nil
	}

	s.transition.Lock()
	entered := s.enter(epoch, domain.SessionLoggedOut, credential)
	s.transition.Unlock()
	if !entered {
		return false, nil
	}

	s.logger.Debug().Str("username", credential.Username).Msg("session restored")
	return true, nil
}

func (s *SessionStore) Login(ctx context.Context, username, password string) error {
	if err := s.validateInput(username, password); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != domain.SessionLoggedOut {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: login while %s", domain.ErrInvalidTransition, state)
	}
	s.state = domain.SessionLoggingIn
	epoch := s.epoch
	s.mu.Unlock()

	token, err := s.backend.Login(ctx, username, password)
	s.metrics.Auth("login", authResult(err))
	if err != nil {
		s.fallBack(epoch, domain.SessionLoggingIn)

		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			s.errors.Raise(rejectionMessage(rejection))
			s.logger.Info().Int("status", rejection.Status).Str("username", username).Msg("login rejected")
			return fmt.Errorf("login: %w", err)
		}

		s.log.Append(fmt.Sprintf("Login failed: %v", err))
		s.logger.Warn().Err(err).Str("username", username).Msg("login transport failure")
		return fmt.Errorf("login: %w", err)
	}

	credential := domain.Credential{Token: token, Username: username, IssuedAt: s.clock.Now()}
	if err := s.commit(ctx, epoch, domain.SessionLoggingIn, credential); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Append(fmt.Sprintf("Login failed: could not store credential: %v", err))
		}
		return err
	}

	s.logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Register creates an operator account. From LoggedOut it authenticates the
// session; from LoggedIn it leaves the current session untouched.
func (s *SessionStore) Register(ctx context.Context, username, password string) error {
	if err := s.validateInput(username, password); err != nil {
		return err
	}

	s.mu.Lock()
	from := s.state
	switch from {
	case domain.SessionLoggedOut:
		s.state = domain.SessionRegistering
	case domain.SessionLoggedIn:
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: register while %s", domain.ErrInvalidTransition, from)
	}
	epoch := s.epoch
	s.mu.Unlock()

	// Entries for a registration made from LoggedIn belong to that session's
	// log and are dropped if it ended meanwhile.
	note := func(entry string) {
		if from == domain.SessionLoggedOut {
			s.log.Append(entry)
			return
		}
		if !s.whileCurrent(epoch, func() { s.log.Append(entry) }) {
			s.logger.Debug().Str("entry", entry).Msg("session ended before registration finished, entry dropped")
		}
	}

	token, err := s.backend.Register(ctx, username, password)
	s.metrics.Auth("register", authResult(err))
	if err != nil {
		if from == domain.SessionLoggedOut {
			s.fallBack(epoch, domain.SessionRegistering)
		}

		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			note(fmt.Sprintf("Registration failed: %s", rejectionMessage(rejection)))
			s.logger.Info().Int("status", rejection.Status).Str("username", username).Msg("registration rejected")
		} else {
			note(fmt.Sprintf("Registration failed: %v", err))
			s.logger.Warn().Err(err).Str("username", username).Msg("registration transport failure")
		}
		return fmt.Errorf("register: %w", err)
	}

	if from == domain.SessionLoggedIn {
		note(fmt.Sprintf("Registered operator %s", username))
		s.logger.Info().Str("username", username).Msg("operator registered")
		return nil
	}

	credential := domain.Credential{Token: token, Username: username, IssuedAt: s.clock.Now()}
	if credential.Empty() {
		s.logger.Debug().Str("username", username).Msg("registration issued no token, session not persisted")
	}
	if err := s.commit(ctx, epoch, domain.SessionRegistering, credential); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Append(fmt.Sprintf("Registration failed: could not store credential: %v", err))
		}
		return err
	}

	s.log.Append(fmt.Sprintf("Registered operator %s", username))
	s.logger.Info().Str("username", username).Msg("registered and logged in")
	return nil
}

// Logout always ends in LoggedOut. The returned error reports a credential that
// could not be removed from the durable slot.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	wasLoggedIn := s.state == domain.SessionLoggedIn
	s.state = domain.SessionLoggedOut
	s.credential = domain.Credential{}
	s.epoch++
	observer := s.observer
	s.mu.Unlock()

	err := s.store.Clear(ctx)

	if wasLoggedIn && observer != nil {
		observer.SessionEnded()
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("clear credential")
		return fmt.Errorf("clear credential: %w", err)
	}

	s.logger.Info().Msg("logged out")
	return nil
}

// commit persists a non-empty credential and enters LoggedIn, unless a logout
// happened since epoch was read. A credential saved by a superseded call is
// removed again.
func (s *SessionStore) commit(ctx context.Context, epoch uint64, from domain.SessionState, credential domain.Credential) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	if !s.current(epoch, from) {
		return fmt.Errorf("%w: %s superseded by logout", domain.ErrInvalidTransition, from)
	}

	if !credential.Empty() {
		if err := s.store.Save(ctx, credential); err != nil {
			s.fallBack(epoch, from)
			s.logger.Error().Err(err).Msg("save credential")
			return fmt.Errorf("save credential: %w", err)
		}
	}

	if !s.enter(epoch, from, credential) {
		if !credential.Empty() {
			if err := s.store.Clear(ctx); err != nil {
				s.logger.Error().Err(err).Msg("clear superseded credential")
			}
		}
		return fmt.Errorf("%w: %s superseded by logout", domain.ErrInvalidTransition, from)
	}

	return nil
}

func (s *SessionStore) current(epoch uint64, from domain.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.state == from
}

func (s *SessionStore) enter(epoch uint64, from domain.SessionState, credential domain.Credential) bool {
	s.mu.Lock()
	if s.epoch != epoch || s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionLoggedIn
	s.credential = credential
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.SessionStarted(credential)
	}
	return true
}

func (s *SessionStore) fallBack(epoch uint64, from domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state == from {
		s.state = domain.SessionLoggedOut
	}
}

func (s *SessionStore) validateInput(username, password string) error {
	if err := s.validate.Struct(credentialsInput{Username: username, Password: password}); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidInput, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func rejectionMessage(rejection *domain.Rejection) string {
	if rejection.Message != "" {
		return rejection.Message
	}
	return rejection.Error()
}

func authResult(err error) string {
	if err == nil {
		return "ok"
	}
	var rejection *domain.Rejection
	if errors.As(err, &rejection) {
		return "rejected"
	}
	return "transport_error"
}
