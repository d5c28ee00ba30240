package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds retries of transient gateway failures.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below 1 mean a single call.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Jitter spreads each wait by up to this fraction either way (0.0-1.0).
	Jitter float64
}

// DefaultRetry is the standard gateway retry configuration.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// Retry calls fn until it succeeds, fails with a non-transient error, or the
// attempts run out. Failures are returned as *CategorizedError with Retries
// set to the number of calls made; a transient error that outlives its
// attempts becomes a delivery error so callers above do not retry again.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)
	backoff := cfg.InitialBackoff

	for calls := 0; ; calls++ {
		if err := ctx.Err(); err != nil {
			return zero, &CategorizedError{Err: err, Category: CategoryDelivery, Retries: calls, Context: "context cancelled"}
		}

		v, err := fn(ctx)
		switch {
		case err == nil:
			return v, nil
		case !IsRetryable(err):
			return zero, &CategorizedError{Err: err, Category: Categorize(err), Retries: calls + 1}
		case calls+1 == attempts:
			return zero, &CategorizedError{Err: err, Category: CategoryDelivery, Retries: attempts, Context: "max retries exceeded"}
		}

		if err := sleep(ctx, jitter(backoff, cfg.Jitter)); err != nil {
			return zero, &CategorizedError{Err: err, Category: CategoryDelivery, Retries: calls + 1, Context: "context cancelled during backoff"}
		}
		backoff = grow(backoff, cfg)
	}
}

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

func jitter(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	return time.Duration(float64(base) * (1 + fraction*(rand.Float64()*2-1)))
}

func grow(backoff time.Duration, cfg RetryConfig) time.Duration {
	if cfg.BackoffFactor > 1 {
		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
	}
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return backoff
}

// RetryOption configures a RetryConfig.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum number of calls.
func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxAttempts = n }
}

// WithInitialBackoff sets the wait before the second call.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.InitialBackoff = d }
}

// WithMaxBackoff caps the wait between calls.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxBackoff = d }
}

// NewRetryConfig returns DefaultRetry with opts applied.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
