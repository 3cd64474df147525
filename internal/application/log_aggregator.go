package application

import (
	"sync"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/observability"
)

// LogAggregator is the single ordered job log shared by the dispatcher and the
// progress channel. Appends are serialized by arrival under one mutex.
type LogAggregator struct {
	mu          sync.Mutex
	entries     []domain.LogEntry
	subscribers map[chan struct{}]struct{}
	metrics     *observability.Metrics
}

func NewLogAggregator(opts ...Option) *LogAggregator {
	o := buildOptions(opts)
	return &LogAggregator{
		subscribers: make(map[chan struct{}]struct{}),
		metrics:     o.metrics,
	}
}

func (l *LogAggregator) Append(entry domain.LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	n := len(l.entries)
	l.notifyLocked()
	l.mu.Unlock()

	l.metrics.SetLogEntries(n)
}

// Snapshot returns a copy of the log reflecting every Append that returned
// before the call.
func (l *LogAggregator) Snapshot() []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *LogAggregator) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LogAggregator) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.notifyLocked()
	l.mu.Unlock()

	l.metrics.SetLogEntries(0)
}

// Subscribe returns a channel that signals every later change to the log.
// Each subscriber has its own channel and signals coalesce per subscriber: a
// reader that falls behind sees one pending signal, then reads Snapshot.
// cancel closes the channel and may be called more than once.
func (l *LogAggregator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, ch)
			close(ch)
			l.mu.Unlock()
		})
	}
	return ch, cancel
}

func (l *LogAggregator) notifyLocked() {
	for ch := range l.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
