package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sourceplane/litejob/internal/model"
)

// Sleeper blocks for d or until the context is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-clock Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy runs an operation up to MaxAttempts times with a fixed delay
// between attempts
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// NewRetryPolicy creates the policy configured in the status retry settings
func NewRetryPolicy(settings model.RetrySettings) RetryPolicy {
	return RetryPolicy{MaxAttempts: settings.Attempts, Delay: settings.Delay}
}

// Do calls fn until it succeeds or the attempts are exhausted. Context
// cancellation is returned immediately and never retried.
func (p RetryPolicy) Do(ctx context.Context, sleep Sleeper, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts {
			break
		}
		logrus.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "delay": p.Delay}).Info("Retrying after failure.")
		if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("giving up after %d attempt(s): %w", attempts, err)
}
