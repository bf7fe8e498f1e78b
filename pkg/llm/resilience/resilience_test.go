package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/pkg/llm/resilience"
)

func fastRetryConfig(maxAttempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return errors.New("always failing")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	cfg := fastRetryConfig(5)
	cfg.RetryableErrors = func(error) bool { return false }

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("fatal")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = time.Second

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		MaxFailures:      2,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	})

	failing := func() error { return errors.New("boom") }

	require.Error(t, cb.Execute(failing))
	require.Error(t, cb.Execute(failing))
	assert.Equal(t, resilience.StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, resilience.ErrCircuitBreakerOpen)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		MaxFailures:      1,
		Timeout:          time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.Equal(t, resilience.StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, resilience.IsRetryableError(nil))
	assert.False(t, resilience.IsRetryableError(context.Canceled))
	assert.True(t, resilience.IsRetryableError(errors.New("connection refused")))
	assert.True(t, resilience.IsRetryableError(errors.New("server error, status code 503")))
	assert.False(t, resilience.IsRetryableError(errors.New("invalid api key")))
}
