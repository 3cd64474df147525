package ports

import (
	"context"

	"github.com/bnema/buswork-cli/internal/domain"
)

// Delivery is one event read from a subscription. Cursor is the transport
// position after the event; it is empty for transports without replay.
type Delivery struct {
	Event  domain.ProgressEvent
	Cursor string
}

// ProgressSource opens push subscriptions. A non-empty cursor asks the
// transport to resume after that position.
type ProgressSource interface {
	Subscribe(ctx context.Context, credential domain.Credential, cursor string) (Subscription, error)
}

// Subscription yields events until the connection fails or Close is called.
// Next blocks; any error ends the subscription.
type Subscription interface {
	Next(ctx context.Context) (Delivery, error)
	Close() error
}
