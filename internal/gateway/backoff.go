package gateway

import (
	"context"
	"time"
)

// sleepBackoff waits for base<<attempt capped at cap, honoring ctx.
func sleepBackoff(ctx context.Context, base, cap time.Duration, attempt int) error {
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		d = cap
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
