package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy is a bounded-retry policy with exponential backoff,
// applied uniformly to I/O-bound pipeline steps.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the standard pipeline retry policy: the
// initial attempt plus up to two retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		Multiplier:     2.0,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the delay before retry number retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < retry; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. It
// returns the last error if every attempt fails, and stops early when
// the context is cancelled.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, operation string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		if logger != nil {
			logger.Warn("operation failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"backoff", delay,
				"error", lastErr,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
