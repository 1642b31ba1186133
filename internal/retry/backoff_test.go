package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       false,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	b := NewBackoff(testConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(testConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	b := NewBackoff(testConfig())

	calls := 0
	failure := errors.New("persistent")
	err := b.Retry(context.Background(), func() error {
		calls++
		return failure
	})

	assert.Equal(t, failure, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithPredicate_StopsOnNonRetryable(t *testing.T) {
	b := NewBackoff(testConfig())

	calls := 0
	terminal := errors.New("terminal")
	err := b.RetryWithPredicate(context.Background(), func() error {
		calls++
		return terminal
	}, func(error) bool { return false })

	assert.Equal(t, terminal, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error { return errors.New("transient") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelay_ExponentialGrowth(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       false,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, 800*time.Millisecond, b.GetNextDelay(4))
	assert.Equal(t, time.Second, b.GetNextDelay(5), "capped at max delay")
}

func TestCalculateDelay_JitterStaysBounded(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		delay := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, delay, 150*time.Millisecond)
		assert.LessOrEqual(t, delay, 250*time.Millisecond)
	}
}
