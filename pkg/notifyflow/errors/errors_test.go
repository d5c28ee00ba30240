package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryDelivery, "delivery"},
		{CategoryConfiguration, "configuration"},
		{CategoryRoutingPolicy, "routing_policy"},
		{CategorySideEffect, "side_effect"},
		{CategoryRaceGuard, "race_guard"},
		{CategoryTransient, "transient"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.String())
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryDelivery},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 503", &HTTPError{StatusCode: 503}, CategoryTransient},
		{"HTTP 500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"HTTP 400", &HTTPError{StatusCode: 400}, CategoryDelivery},
		{"HTTP 401", &HTTPError{StatusCode: 401}, CategoryDelivery},
		{"timeout", &TimeoutError{Operation: "send", Duration: "5s"}, CategoryTransient},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), CategoryTransient},
		{"configuration", Configuration(errors.New("no metadata"), "lookup"), CategoryConfiguration},
		{"wrapped side effect", fmt.Errorf("audit: %w", SideEffect(errors.New("disk"), "write")), CategorySideEffect},
		{"unknown", errors.New("boom"), CategoryDelivery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.err))
		})
	}
}

func TestCategorizedError(t *testing.T) {
	inner := errors.New("failed")

	err := RoutingPolicy(inner, "resolve targets")
	assert.Equal(t, "resolve targets: failed (category: routing_policy)", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := &CategorizedError{Err: inner, Category: CategoryRaceGuard}
	assert.Equal(t, "failed (category: race_guard)", bare.Error())

	assert.True(t, IsConfiguration(Configuration(inner, "x")))
	assert.False(t, IsConfiguration(inner))
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{StatusCode: 502, Message: "bad gateway", Endpoint: "/v1/sms"}
	assert.Equal(t, "HTTP 502 at /v1/sms: bad gateway", err.Error())

	err = &HTTPError{StatusCode: 404, Message: "not found"}
	assert.Equal(t, "HTTP 404: not found", err.Error())
}

// retries extracts the call count recorded on a retry failure.
func retries(t *testing.T, err error) int {
	t.Helper()
	var ce *CategorizedError
	require.ErrorAs(t, err, &ce)
	return ce.Retries
}

func TestRetry(t *testing.T) {
	fast := NewRetryConfig(WithMaxAttempts(3), WithInitialBackoff(time.Millisecond), WithMaxBackoff(2*time.Millisecond))

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		v, err := Retry(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			return "msg-1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "msg-1", v)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		v, err := Retry(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &HTTPError{StatusCode: 503}
			}
			return "msg-2", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "msg-2", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 400}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, retries(t, err))
		assert.Equal(t, CategoryDelivery, Categorize(err))
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 429}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, retries(t, err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("single attempt when unset", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), RetryConfig{}, func(context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 503}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Retry(ctx, fast, func(context.Context) (string, error) {
			t.Fatal("fn must not run")
			return "", nil
		})
		require.Error(t, err)
		assert.Equal(t, 0, retries(t, err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGrow(t *testing.T) {
	cfg := RetryConfig{BackoffFactor: 2, MaxBackoff: 300 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, grow(100*time.Millisecond, cfg))
	assert.Equal(t, 300*time.Millisecond, grow(200*time.Millisecond, cfg))
	assert.Equal(t, 50*time.Millisecond, grow(50*time.Millisecond, RetryConfig{}))
}
