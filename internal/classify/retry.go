package classify

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64 // 0.0 to 1.0, fraction of delay to randomize

	// Sleep is the blocking wait used between attempts. Tests inject a no-op;
	// nil means a real context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig is tuned for remote classifier transient errors.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    3,
	InitialDelay:   1 * time.Second,
	MaxDelay:       15 * time.Second,
	BackoffFactor:  2.0,
	JitterFraction: 0.2,
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithRetry executes fn with exponential backoff plus jitter. It stops
// retrying when the error is non-retryable (an *Error with Retryable=false),
// the context is cancelled, or all attempts are exhausted.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't retry non-retryable errors
		if cErr, ok := err.(*Error); ok && !cErr.Retryable {
			return zero, err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
		if cfg.JitterFraction > 0 {
			jitter := delay * cfg.JitterFraction * (rand.Float64()*2 - 1)
			delay += jitter
			if delay < 0 {
				delay = float64(cfg.InitialDelay)
			}
		}

		if err := sleep(ctx, time.Duration(delay)); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
