package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// RetryPolicy retries connectivity failures with a fixed delay.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// retry runs op until it succeeds, fails with a non-connectivity error, or
// the attempts are used up. The last error is returned unchanged.
func retry[T any](ctx context.Context, p RetryPolicy, what string, op func(context.Context) (T, error)) (T, error) {
	logger := log.GetLoggerWithName("pipeline")
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !errors.IsConnectivity(err) {
			return v, backoff.Permanent(err)
		}
		logger.Warn("Connection attempt failed", err, "target", what, "attempt", attempt, "max_attempts", attempts)
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
}
