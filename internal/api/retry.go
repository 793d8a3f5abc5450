package api

import (
	"context"
	"time"

	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
)

// retry runs op up to maxAttempts times. Only Retryable errors trigger
// another attempt; the delay before attempt n+1 is backoffStep*n. The last
// observed error is returned once the budget is spent.
func (c *Client) retry(ctx context.Context, op func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = op(attempt)
		if lastErr == nil || !Retryable(lastErr) || attempt == c.maxAttempts {
			return lastErr
		}

		delay := c.backoffStep * time.Duration(attempt)
		metrics.HTTPRetries.Inc()
		log.Info("retrying request", "next_attempt", attempt+1, "delay", delay, "error", lastErr)

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// sleepContext waits for d unless ctx is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
