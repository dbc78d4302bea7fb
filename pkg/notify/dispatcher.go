package notify

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher fans messages out to every configured channel, spacing
// consecutive messages so chat APIs do not rate-limit a chatty run.
type Dispatcher struct {
	notifiers []Notifier
	delay     time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(notifiers []Notifier, delay time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		delay:     delay,
		logger:    logger,
	}
}

// Broadcast sends the messages in order to every notifier. Delivery
// failures are logged, never returned: one dead channel must not take
// down the run or starve the remaining channels.
func (d *Dispatcher) Broadcast(ctx context.Context, messages []string) {
	for i, msg := range messages {
		if i > 0 && d.delay > 0 {
			select {
			case <-ctx.Done():
				d.logger.Warn("broadcast cut short", "sent", i, "total", len(messages))
				return
			case <-time.After(d.delay):
			}
		}
		for _, n := range d.notifiers {
			if err := n.Send(ctx, msg); err != nil {
				d.logger.Error("send notification failed", "notifier", n.Name(), "error", err)
			}
		}
	}
}
