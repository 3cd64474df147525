package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/rs/zerolog"
)

// CommandDispatcher sends job-trigger commands. It reports acceptance only and
// never waits for the job itself; concurrent calls do not coordinate.
type CommandDispatcher struct {
	session *SessionStore
	backend ports.Backend
	log     *LogAggregator
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewCommandDispatcher(session *SessionStore, backend ports.Backend, log *LogAggregator, opts ...Option) *CommandDispatcher {
	o := buildOptions(opts)
	return &CommandDispatcher{
		session: session,
		backend: backend,
		log:     log,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Dispatch returns the backend's acceptance message, which is also appended to
// the log. Failures append a failure entry and are returned wrapped. A result
// arriving after the session that sent it has ended is returned but not
// logged.
func (d *CommandDispatcher) Dispatch(ctx context.Context, command domain.JobCommand) (string, error) {
	if !command.Valid() {
		return "", fmt.Errorf("dispatch %q: %w", command.Name, domain.ErrUnknownCommand)
	}

	credential, epoch, ok := d.session.activeSession()
	if !ok {
		return "", fmt.Errorf("dispatch %s: %w", command, domain.ErrNotLoggedIn)
	}

	message, err := d.backend.Dispatch(ctx, credential, command)
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			d.metrics.Dispatch(command.Name, "rejected")
			d.record(epoch, command, fmt.Sprintf("Job %s rejected: %s", command, rejectionMessage(rejection)))
			d.logger.Info().Str("command", command.Name).Int("status", rejection.Status).Msg("job rejected")
		} else {
			d.metrics.Dispatch(command.Name, "transport_error")
			d.record(epoch, command, fmt.Sprintf("Job %s failed: %v", command, err))
			d.logger.Warn().Err(err).Str("command", command.Name).Msg("dispatch transport failure")
		}
		return "", fmt.Errorf("dispatch %s: %w", command, err)
	}

	d.metrics.Dispatch(command.Name, "accepted")
	d.record(epoch, command, message)
	d.logger.Debug().Str("command", command.Name).Str("message", message).Msg("job accepted")
	return message, nil
}

// record appends entry to the log of the session started at epoch.
func (d *CommandDispatcher) record(epoch uint64, command domain.JobCommand, entry domain.LogEntry) {
	if !d.session.whileCurrent(epoch, func() { d.log.Append(entry) }) {
		d.logger.Debug().Str("command", command.Name).Str("entry", entry).Msg("session ended before dispatch result, entry dropped")
	}
}
