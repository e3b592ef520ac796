package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers text to the chat or channel identified by subscriberID.
// Delivery failures are reported, never retried here.
type Notifier interface {
	Notify(ctx context.Context, subscriberID, text string) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, subscriberID, text string) error

func (f Func) Notify(ctx context.Context, subscriberID, text string) error {
	return f(ctx, subscriberID, text)
}

// Multi sends to every notifier and combines the failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subscriberID, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Notify(ctx, subscriberID, text))
	}
	return err
}

// Log writes notifications to the logger; used when no transport is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(_ context.Context, subscriberID, text string) error {
	if l.Logger != nil {
		l.Logger.Info("notification", zap.String("subscriber_id", subscriberID), zap.String("text", text))
	}
	return nil
}
