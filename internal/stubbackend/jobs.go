package stubbackend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrJobRunning = errors.New("job already running")

var progressSteps = []int{0, 25, 50, 75, 100}

// jobRunner simulates long-running jobs: each accepted command publishes a
// fixed series of progress lines. One run per command at a time.
type jobRunner struct {
	hub       *hub
	stepDelay time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	running map[string]string
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func newJobRunner(h *hub, stepDelay time.Duration, logger zerolog.Logger) *jobRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &jobRunner{
		hub:       h,
		stepDelay: stepDelay,
		logger:    logger,
		running:   map[string]string{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches spec and returns the run id.
func (r *jobRunner) Start(spec domain.JobSpec, username string) (string, error) {
	r.mu.Lock()
	if _, busy := r.running[spec.Command.Name]; busy {
		r.mu.Unlock()
		return "", ErrJobRunning
	}
	runID := uuid.NewString()
	r.running[spec.Command.Name] = runID
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info().Str("command", spec.Command.Name).Str("run_id", runID).Str("username", username).Msg("job started")
	go r.run(spec, runID)

	return runID, nil
}

func (r *jobRunner) run(spec domain.JobSpec, runID string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.running, spec.Command.Name)
		r.mu.Unlock()
	}()

	title := describe(spec)
	for i, pct := range progressSteps {
		if i > 0 {
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(r.stepDelay):
			}
		}

		message := fmt.Sprintf("%s: %d%% done", title, pct)
		if pct == 100 {
			message = fmt.Sprintf("%s: completed", title)
		}
		r.hub.Publish(r.ctx, message)
	}

	r.logger.Info().Str("command", spec.Command.Name).Str("run_id", runID).Msg("job finished")
}

// Stop abandons running jobs and waits for their goroutines.
func (r *jobRunner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func describe(spec domain.JobSpec) string {
	return fmt.Sprintf("%s (%s)", spec.Label, spec.Platform)
}
