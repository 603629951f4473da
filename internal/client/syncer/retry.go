package syncer

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"github.com/01011010/notesum-hybrid/internal/common"
)

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	return errors.Is(err, common.ErrUnauthorized) ||
		errors.Is(err, common.ErrValidation) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// withRetry runs fn with exponential backoff and jitter, up to MaxAttempts
// times in total.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(e.opts.RetryBase)
	if e.opts.RetryJitterPercent > 0 {
		b = retry.WithJitterPercent(e.opts.RetryJitterPercent, b)
	}
	b = retry.WithMaxRetries(uint64(e.opts.MaxAttempts-1), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || permanent(err) {
			return err
		}
		if attempt < e.opts.MaxAttempts {
			e.log.Debug(ctx, "Retrying sync operation", "operation", op, "attempt", attempt, "error", err)
		}
		return retry.RetryableError(err)
	})
}
