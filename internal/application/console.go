package application

import (
	"context"
	"errors"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ConsoleConfig struct {
	Store    ports.CredentialStore
	Backend  ports.Backend
	Progress ports.ProgressSource

	Reconnect         ReconnectPolicy
	RetainLogOnLogout bool

	// SessionID tags diagnostics; a random one is generated when empty.
	SessionID string
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Clock     ports.Clock
}

// Console wires the session, dispatcher, channel, log and error surface
// together. The progress channel is open exactly while the session is
// LoggedIn.
type Console struct {
	SessionID  string
	Log        *LogAggregator
	Errors     *ErrorSurface
	Session    *SessionStore
	Dispatcher *CommandDispatcher
	Channel    *ProgressChannel

	retainLog bool
	logger    zerolog.Logger
}

func NewConsole(cfg ConsoleConfig) *Console {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := cfg.Logger.With().Str("session_id", sessionID).Logger()

	opts := []Option{WithLogger(logger), WithMetrics(cfg.Metrics), WithClock(cfg.Clock)}

	log := NewLogAggregator(opts...)
	surface := NewErrorSurface()
	session := NewSessionStore(cfg.Store, cfg.Backend, log, surface, opts...)

	policy := cfg.Reconnect
	if policy == (ReconnectPolicy{}) {
		policy = DefaultReconnectPolicy()
	}

	c := &Console{
		SessionID:  sessionID,
		Log:        log,
		Errors:     surface,
		Session:    session,
		Dispatcher: NewCommandDispatcher(session, cfg.Backend, log, opts...),
		Channel:    NewProgressChannel(cfg.Progress, log, policy, opts...),
		retainLog:  cfg.RetainLogOnLogout,
		logger:     logger,
	}
	session.Observe(c)

	return c
}

func (c *Console) SessionStarted(credential domain.Credential) {
	c.logger.Debug().Str("username", credential.Username).Msg("session started")
	c.Channel.Open(credential)
}

func (c *Console) SessionEnded() {
	c.Channel.Close()
	if !c.retainLog {
		c.Log.Clear()
	}
	c.logger.Debug().Bool("log_retained", c.retainLog).Msg("session ended")
}

func (c *Console) Restore(ctx context.Context) (bool, error) {
	return c.Session.Restore(ctx)
}

func (c *Console) Login(ctx context.Context, username, password string) error {
	return c.Session.Login(ctx, username, password)
}

func (c *Console) Register(ctx context.Context, username, password string) error {
	return c.Session.Register(ctx, username, password)
}

func (c *Console) Logout(ctx context.Context) error {
	return c.Session.Logout(ctx)
}

func (c *Console) Dispatch(ctx context.Context, command domain.JobCommand) (string, error) {
	return c.Dispatcher.Dispatch(ctx, command)
}

// CredentialRevoked ends a LoggedIn session whose persisted credential was
// removed by another process.
func (c *Console) CredentialRevoked(ctx context.Context) error {
	if c.Session.State() != domain.SessionLoggedIn {
		return nil
	}
	err := c.Session.Logout(ctx)
	c.Log.Append("Signed out: the stored session was removed")
	c.logger.Info().Msg("credential revoked externally")
	if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
		return err
	}
	return nil
}

// Close releases the progress channel without logging out; the persisted
// credential survives for the next Restore.
func (c *Console) Close() {
	c.Channel.Close()
}
