package notify

import "context"

// Notifier delivers operator-facing messages to one channel.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers one message. Implementations must be safe for concurrent use.
	Send(ctx context.Context, text string) error
}
