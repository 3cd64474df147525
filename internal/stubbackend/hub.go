package stubbackend

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Mirror receives every published message, e.g. a Redis publisher.
type Mirror interface {
	Publish(ctx context.Context, message string) error
}

type hubEvent struct {
	ID      uint64
	Message string
}

// hub fans progress messages out to stream subscribers and keeps a bounded
// history so a reconnecting client can resume after its last event id.
type hub struct {
	mu          sync.Mutex
	nextID      uint64
	history     []hubEvent
	historySize int
	subscribers map[chan hubEvent]struct{}
	mirror      Mirror
	logger      zerolog.Logger
}

func newHub(historySize int, mirror Mirror, logger zerolog.Logger) *hub {
	if historySize <= 0 {
		historySize = 1024
	}
	return &hub{
		historySize: historySize,
		subscribers: map[chan hubEvent]struct{}{},
		mirror:      mirror,
		logger:      logger,
	}
}

func (h *hub) Publish(ctx context.Context, message string) hubEvent {
	h.mu.Lock()
	h.nextID++
	event := hubEvent{ID: h.nextID, Message: message}
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// A subscriber this far behind is dropped; its client reconnects
			// and resumes from history.
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	h.mu.Unlock()

	if h.mirror != nil {
		if err := h.mirror.Publish(ctx, message); err != nil {
			h.logger.Warn().Err(err).Msg("mirror progress event")
		}
	}

	return event
}

// Subscribe returns the retained events after lastID and a channel for new
// ones. The channel closes when cancel is called or the subscriber lags.
func (h *hub) Subscribe(lastID uint64) ([]hubEvent, <-chan hubEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var backlog []hubEvent
	for _, event := range h.history {
		if event.ID > lastID {
			backlog = append(backlog, event)
		}
	}

	ch := make(chan hubEvent, 64)
	h.subscribers[ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}

	return backlog, ch, cancel
}

// Drop disconnects every subscriber, simulating a backend restart.
func (h *hub) Drop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
