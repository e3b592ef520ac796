package notify

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited holds deliveries to Inner under a token bucket.
// Telegram rejects bursts above ~30 msg/s per bot.
type RateLimited struct {
	Inner   Notifier
	Limiter *rate.Limiter
}

func NewRateLimited(inner Notifier, perSec float64, burst int) Notifier {
	if perSec <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Inner: inner, Limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (r *RateLimited) Notify(ctx context.Context, subscriberID, text string) error {
	if err := r.Limiter.Wait(ctx); err != nil {
		return err
	}
	return r.Inner.Notify(ctx, subscriberID, text)
}
