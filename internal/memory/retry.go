package memory

import (
	"context"
	"time"
)

// backoffDelay doubles the base delay per attempt, capped at five seconds.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	const max = 5 * time.Second
	if attempt > 20 {
		return max
	}
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	return d
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
