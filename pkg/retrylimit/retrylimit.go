// Package retrylimit provides bounded retry with exponential backoff and
// an adaptive rate limiter for building resilient upstream clients.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5)
//	err := retrylimit.Do(ctx, retrylimit.Config{MaxAttempts: 3}, lim, func() error {
//	    return doSomeWork()
//	})
package retrylimit

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Errors
// =============================================================================

// RetryableError marks errors the retry loop may absorb. Errors without
// this interface are treated as fatal and propagate on first occurrence.
type RetryableError interface {
	error
	Retryable() bool
}

// RetryAfterError optionally carries a server-supplied wait hint. When
// present and positive it overrides the computed backoff exactly.
type RetryAfterError interface {
	error
	RetryAfterHint() time.Duration
}

// IsRetryable reports whether err (or anything it wraps) is a retryable
// classified error.
func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re) && re.Retryable()
}

// RetryAfter extracts a server wait hint from err, or 0.
func RetryAfter(err error) time.Duration {
	var ra RetryAfterError
	if errors.As(err, &ra) {
		return ra.RetryAfterHint()
	}
	return 0
}

// =============================================================================
// Retry
// =============================================================================

// Config configures the retry loop.
type Config struct {
	MaxAttempts int           // total attempts, default 3
	BaseDelay   time.Duration // backoff base, default 500ms

	// Sleep is swappable for tests; nil sleeps for real (context-aware).
	Sleep func(context.Context, time.Duration) error

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do runs fn up to MaxAttempts times. An error is retried only when it is
// classified retryable; fatal errors and the final attempt's error
// propagate to the caller. Backoff grows as 2^attempt*base plus jitter
// bounded by min(1s, base); a server Retry-After hint wins when present.
// The limiter, when non-nil, paces every attempt and is notified of the
// outcome. No lock is held across sleeps.
func Do(ctx context.Context, cfg Config, lim *AdaptiveLimiter, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if lim != nil {
			lim.RateLimited()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := Backoff(attempt, cfg.BaseDelay)
		if hint := RetryAfter(err); hint > 0 {
			delay = hint
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Backoff returns 2^attempt*base plus random jitter. Jitter is bounded by
// min(1s, base) so small bases stay small.
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 20 {
		attempt = 20
	}
	d := base * time.Duration(1<<uint(attempt))
	maxJitter := time.Second
	if base < maxJitter {
		maxJitter = base
	}
	if maxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(maxJitter)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// =============================================================================
// Limiter
// =============================================================================

// AdaptiveLimiter manages a request rate that adjusts to outcomes: it
// creeps up on success and backs off multiplicatively on failures.
// Thread-safe.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min: minimum allowed rate
//   - max: maximum allowed rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on failure (e.g. 0.5 to halve)
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < min {
		initial = min
	}
	burst := 1
	if int(initial) > burst {
		burst = int(initial)
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or the context is canceled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// Success increases the rate after a successful request.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited reduces the rate after a failure or overload response.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		burst := 1
		if int(newLimit) > burst {
			burst = int(newLimit)
		}
		a.limiter.SetBurst(burst)
	}
}
