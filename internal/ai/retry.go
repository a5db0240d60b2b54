package ai

import (
	"context"
	"log"
	"time"

	"discordllmbot/pkg/retrylimit"
)

// retrying wraps a Provider with bounded retry and adaptive pacing.
// Backoff sleeps run outside any cache lock; the wrapped call owns its
// own HTTP timeout, so there is no external cancellation beyond ctx.
type retrying struct {
	inner   Provider
	cfg     retrylimit.Config
	limiter *retrylimit.AdaptiveLimiter
}

func newRetrying(inner Provider, attempts int, base time.Duration) *retrying {
	return &retrying{
		inner: inner,
		cfg: retrylimit.Config{
			MaxAttempts: attempts,
			BaseDelay:   base,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				log.Printf("[AI] attempt %d failed: %v, retrying in %v", attempt, err, delay)
			},
		},
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5),
	}
}

func (r *retrying) Generate(ctx context.Context, prompt string) (Reply, error) {
	var reply Reply
	err := retrylimit.Do(ctx, r.cfg, r.limiter, func() error {
		var err error
		reply, err = r.inner.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (r *retrying) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	err := retrylimit.Do(ctx, r.cfg, r.limiter, func() error {
		var err error
		models, err = r.inner.ListModels(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}
