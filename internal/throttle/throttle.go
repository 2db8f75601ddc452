// Package throttle bounds how aggressively the fork/exec engine may retry
// and repeat forks, using golang.org/x/time/rate for a crash-loop safety net
// and github.com/cenkalti/backoff for transient-failure retry. Neither
// mechanism is allowed to skip a respawn outright (spec.md never permits
// that) — only to slow it down or bound the retry budget before escalating
// to the fatal error spec.md §7 requires.
package throttle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"
)

// ForkLimiter gates how often a new booster may be forked, to protect
// embedded single-core hardware from a booster that crashes immediately on
// every hand-off.
type ForkLimiter struct {
	limiter *rate.Limiter
}

// NewForkLimiter allows bursts of burst forks, refilling at 1 every period.
func NewForkLimiter(period time.Duration, burst int) *ForkLimiter {
	return &ForkLimiter{limiter: rate.NewLimiter(rate.Every(period), burst)}
}

// Wait blocks until a fork attempt is permitted, returning false immediately
// if no throttling occurred and true if the caller had to wait.
func (l *ForkLimiter) Wait(ctx context.Context) (waited bool, err error) {
	if l.limiter.Allow() {
		return false, nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// RetryFork wraps attempt with a small bounded exponential backoff, for the
// transient EAGAIN/ENOMEM case spec.md §7 distinguishes from a genuine fatal
// fork failure. Any plain error returned by attempt is retried until the
// backoff budget is spent; an error wrapped with backoff.Permanent stops the
// retries at once and is returned unwrapped.
func RetryFork(attempt func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(attempt, b)
}
