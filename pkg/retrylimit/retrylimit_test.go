package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifiedError struct {
	msg        string
	retryable  bool
	retryAfter time.Duration
}

func (e *classifiedError) Error() string                 { return e.msg }
func (e *classifiedError) Retryable() bool               { return e.retryable }
func (e *classifiedError) RetryAfterHint() time.Duration { return e.retryAfter }

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Sleep: noSleep(&delays)}

	calls := 0
	err := Do(context.Background(), cfg, nil, func() error {
		calls++
		if calls < 3 {
			return &classifiedError{msg: "overloaded", retryable: true}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, delays, 2)
	assert.LessOrEqual(t, delays[0], delays[1], "backoff must be non-decreasing")
}

func TestDoFatalErrorStopsImmediately(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 5, Sleep: noSleep(&delays)}

	fatal := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), cfg, nil, func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: noSleep(&delays)}

	last := &classifiedError{msg: "still down", retryable: true}
	err := Do(context.Background(), cfg, nil, func() error { return last })

	assert.ErrorIs(t, err, last)
	assert.Len(t, delays, 2, "no sleep after the final attempt")
}

func TestDoHonorsRetryAfterHint(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond, Sleep: noSleep(&delays)}

	calls := 0
	err := Do(context.Background(), cfg, nil, func() error {
		calls++
		if calls == 1 {
			return &classifiedError{msg: "slow down", retryable: true, retryAfter: 2 * time.Second}
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 2*time.Second, delays[0], "server hint overrides computed backoff exactly")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Config{MaxAttempts: 3}, nil, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoReportsRetries(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	cfg := Config{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		Sleep:       noSleep(&delays),
		OnRetry:     func(attempt int, err error, delay time.Duration) { attempts = append(attempts, attempt) },
	}

	_ = Do(context.Background(), cfg, nil, func() error {
		return &classifiedError{msg: "nope", retryable: true}
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffGrowthAndJitterBound(t *testing.T) {
	base := 500 * time.Millisecond
	for attempt := 1; attempt <= 4; attempt++ {
		d := Backoff(attempt, base)
		floor := base * time.Duration(1<<uint(attempt))
		assert.GreaterOrEqual(t, d, floor, "attempt %d", attempt)
		assert.Less(t, d, floor+base, "jitter bounded by base for small bases")
	}

	// Large bases cap jitter at one second.
	big := 5 * time.Second
	d := Backoff(1, big)
	assert.GreaterOrEqual(t, d, 10*time.Second)
	assert.Less(t, d, 11*time.Second)
}

func TestIsRetryableAndRetryAfter(t *testing.T) {
	re := &classifiedError{msg: "x", retryable: true, retryAfter: time.Second}
	assert.True(t, IsRetryable(re))
	assert.Equal(t, time.Second, RetryAfter(re))

	wrapped := errors.Join(errors.New("context"), re)
	assert.True(t, IsRetryable(wrapped))

	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Zero(t, RetryAfter(plain))
}

func TestAdaptiveLimiterAdjusts(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 10, 1, 0.5)

	require.Equal(t, 4.0, lim.CurrentLimit())

	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit(), "rate never drops below the floor")

	// Success right after an error does not creep the rate back up.
	lim.Success()
	assert.Equal(t, 1.0, lim.CurrentLimit())
}

func TestAdaptiveLimiterCeiling(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 10, 5, 0.5)
	lim.Success()
	assert.Equal(t, 10.0, lim.CurrentLimit())
}
