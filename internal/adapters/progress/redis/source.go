// Package redis receives progress events from a Redis pub/sub channel and
// publishes them on the stub backend side.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultChannel = "progressUpdate"
	defaultTimeout = 5 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Source subscribes to Channel. Pub/sub has no replay, so the cursor is
// ignored and events published while disconnected are not delivered.
type Source struct {
	Client  *redis.Client
	Channel string
}

var _ ports.ProgressSource = Source{}

type payload struct {
	Message string `json:"message"`
}

func (s Source) Subscribe(ctx context.Context, _ domain.Credential, _ string) (ports.Subscription, error) {
	channel := s.channel()
	pubsub := s.Client.Subscribe(ctx, channel)

	// Receive waits for the subscribe confirmation, surfacing connection errors.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", domain.ErrChannel, channel, err)
	}

	return newSubscription(pubsub.Channel(), pubsub.Close), nil
}

func (s Source) channel() string {
	if s.Channel == "" {
		return DefaultChannel
	}
	return s.Channel
}

type subscription struct {
	messages <-chan *redis.Message
	close    func() error
}

func newSubscription(messages <-chan *redis.Message, closeFn func() error) *subscription {
	return &subscription{messages: messages, close: closeFn}
}

func (s *subscription) Next(ctx context.Context) (ports.Delivery, error) {
	select {
	case <-ctx.Done():
		return ports.Delivery{}, ctx.Err()
	case msg, ok := <-s.messages:
		if !ok {
			return ports.Delivery{}, fmt.Errorf("%w: redis subscription closed", domain.ErrChannel)
		}
		return ports.Delivery{Event: domain.ProgressEvent{Message: decode(msg.Payload)}}, nil
	}
}

func (s *subscription) Close() error {
	return s.close()
}

func decode(raw string) string {
	var decoded payload
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil && decoded.Message != "" {
		return decoded.Message
	}
	return raw
}

// Publisher writes progress events in the format Source reads.
type Publisher struct {
	Client  *redis.Client
	Channel string
}

func (p Publisher) Publish(ctx context.Context, message string) error {
	encoded, err := json.Marshal(payload{Message: message})
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}

	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	if err := p.Client.Publish(ctx, channel, encoded).Err(); err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}
