package application

import (
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/rs/zerolog"
)

// Option configures the ambient dependencies shared by the console components.
type Option func(*options)

type options struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
	clock   ports.Clock
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records component activity on m. A nil m disables recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(clock ports.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), clock: ports.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
