package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		return fmt.Errorf("always")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "always")
}

func TestRetryWithPredicateStopsOnPermanentError(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	permanent := fmt.Errorf("permanent")
	err := b.RetryWithPredicate(context.Background(), func() error {
		attempts++
		return permanent
	}, func(error) bool { return false })

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error { return fmt.Errorf("keep going") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetNextDelayGrowsAndCaps(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 300*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, 300*time.Millisecond, b.GetNextDelay(4))
}

func TestJitterStaysInBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.Jitter = true
	b := NewBackoff(cfg)

	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cfg.MaxDelay)
	}
}
