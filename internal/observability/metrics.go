// Package observability defines the Prometheus metrics bw exposes when
// started with a metrics listen address. It is the single source of truth for
// metric names, labels, and help strings.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "buswork_console"

// Metrics groups the console collectors. A nil *Metrics is valid and records
// nothing, so components do not need to guard every call.
type Metrics struct {
	// DispatchesTotal counts job-trigger commands by outcome.
	// Labels:
	//   - command: job command name (e.g. "ecommerce-1-price-update")
	//   - result: "accepted", "rejected" or "transport_error"
	DispatchesTotal *prometheus.CounterVec

	// ProgressEventsTotal counts progress events appended to the log.
	ProgressEventsTotal prometheus.Counter

	// ChannelReconnectsTotal counts reconnect attempts by result.
	// Label:
	//   - result: "restored" or "failed"
	ChannelReconnectsTotal *prometheus.CounterVec

	// AuthAttemptsTotal counts login and registration calls.
	// Labels:
	//   - operation: "login" or "register"
	//   - result: "ok", "rejected" or "transport_error"
	AuthAttemptsTotal *prometheus.CounterVec

	// LogEntries tracks the current length of the job log.
	LogEntries prometheus.Gauge
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of job commands sent to the backend, by result.",
			},
			[]string{"command", "result"},
		),
		ProgressEventsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_events_total",
				Help:      "Total number of progress events received on the push channel.",
			},
		),
		ChannelReconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_reconnects_total",
				Help:      "Total number of progress channel reconnect attempts, by result.",
			},
			[]string{"result"},
		),
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of login and registration calls, by result.",
			},
			[]string{"operation", "result"},
		),
		LogEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "log_entries",
				Help:      "Current number of entries in the job log.",
			},
		),
	}
}

func (m *Metrics) Dispatch(command, result string) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(command, result).Inc()
}

func (m *Metrics) ProgressEvent() {
	if m == nil {
		return
	}
	m.ProgressEventsTotal.Inc()
}

func (m *Metrics) Reconnect(result string) {
	if m == nil {
		return
	}
	m.ChannelReconnectsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Auth(operation, result string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) SetLogEntries(n int) {
	if m == nil {
		return
	}
	m.LogEntries.Set(float64(n))
}
