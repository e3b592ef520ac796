package probe

import (
	"context"
	"fmt"
	"time"
)

// RetryChecker gives a flaky target more than one chance per probe. Only the
// final outcome reaches the debounce engine, so a single dropped connection
// does not open a DOWN episode.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration // doubled after every failed attempt
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := max(r.Attempts, 1)
	backoff := r.Backoff

	var (
		last CheckResult
		n    int
	)
	for n < attempts {
		last = r.Inner.Check(ctx, target)
		n++
		if last.Success || n == attempts || !sleepCtx(ctx, backoff) {
			break
		}
		backoff *= 2
	}
	if n > 1 && !last.Success {
		last.Message = fmt.Sprintf("%s (after %d attempts)", last.Message, n)
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
