package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/rs/zerolog"
)

// ReconnectPolicy bounds the reconnect sequence run after a channel failure.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, MaxAttempts: 5}
}

// Delay is the wait before the given 1-based attempt: the initial delay doubled
// per attempt, capped at MaxDelay.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ProgressChannel owns the one push subscription of a LoggedIn session and
// appends every delivered event to the log in transport order.
type ProgressChannel struct {
	source  ports.ProgressSource
	log     *LogAggregator
	policy  ReconnectPolicy
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewProgressChannel(source ports.ProgressSource, log *LogAggregator, policy ReconnectPolicy, opts ...Option) *ProgressChannel {
	o := buildOptions(opts)
	return &ProgressChannel{
		source:  source,
		log:     log,
		policy:  policy,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Open starts the reader for credential. It is a no-op while a reader runs.
func (c *ProgressChannel) Open(credential domain.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		select {
		case <-c.done:
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.run(ctx, credential, done)
}

// Active reports whether a reader is running. It turns false once a reconnect
// sequence is exhausted.
func (c *ProgressChannel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Done is closed when the current reader exits. It is nil before Open.
func (c *ProgressChannel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close stops the reader and waits for it. Calling it when nothing is open,
// or more than once, is safe.
func (c *ProgressChannel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *ProgressChannel) run(ctx context.Context, credential domain.Credential, done chan struct{}) {
	defer close(done)

	cursor := ""
	sub, err := c.source.Subscribe(ctx, credential, cursor)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Append(fmt.Sprintf("Progress channel unavailable: %v", err))
		c.logger.Warn().Err(err).Msg("progress subscribe failed")
		if sub = c.reconnect(ctx, credential, cursor); sub == nil {
			return
		}
	}
	c.logger.Debug().Msg("progress channel open")

	for {
		delivery, err := sub.Next(ctx)
		if err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				c.logger.Debug().Msg("progress channel closed")
				return
			}
			c.log.Append(fmt.Sprintf("Progress channel lost: %v", err))
			c.logger.Warn().Err(err).Str("cursor", cursor).Msg("progress channel lost")
			if sub = c.reconnect(ctx, credential, cursor); sub == nil {
				return
			}
			continue
		}

		if delivery.Cursor != "" {
			cursor = delivery.Cursor
		}
		c.metrics.ProgressEvent()
		c.log.Append(delivery.Event.Message)
	}
}

// reconnect runs one bounded attempt sequence resuming after cursor. It returns
// nil when the attempts are exhausted or ctx ends.
func (c *ProgressChannel) reconnect(ctx context.Context, credential domain.Credential, cursor string) ports.Subscription {
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		timer := time.NewTimer(c.policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		sub, err := c.source.Subscribe(ctx, credential, cursor)
		if err == nil {
			c.metrics.Reconnect("restored")
			c.log.Append(fmt.Sprintf("Progress channel restored (attempt %d/%d)", attempt, c.policy.MaxAttempts))
			c.logger.Info().Int("attempt", attempt).Msg("progress channel restored")
			return sub
		}
		if ctx.Err() != nil {
			return nil
		}

		c.metrics.Reconnect("failed")
		c.log.Append(fmt.Sprintf("Reconnect attempt %d/%d failed: %v", attempt, c.policy.MaxAttempts, err))
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("progress reconnect failed")
	}

	c.log.Append(fmt.Sprintf("Progress channel closed after %d failed reconnect attempts", c.policy.MaxAttempts))
	c.logger.Error().Int("attempts", c.policy.MaxAttempts).Msg("progress channel gave up")
	return nil
}
