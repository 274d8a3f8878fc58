package health

import (
	"context"
	"fmt"
	"time"
)

// WaitReady polls checker every interval until it reports healthy or timeout
// elapses. It returns the last result and an error when readiness never
// arrived within the bound.
func WaitReady(ctx context.Context, checker Checker, interval, timeout time.Duration) (Result, error) {
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		result := checker.Check(ctx)
		if result.Healthy {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("not ready after %d attempts in %s: %s", attempts, timeout, result.Message)
		case <-ticker.C:
		}
	}
}
