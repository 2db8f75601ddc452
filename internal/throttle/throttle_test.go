package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/require"
)

func TestForkLimiterAllowsBurstThenThrottles(t *testing.T) {
	l := NewForkLimiter(50*time.Millisecond, 2)
	ctx := context.Background()

	waited, err := l.Wait(ctx)
	require.NoError(t, err)
	require.False(t, waited)

	waited, err = l.Wait(ctx)
	require.NoError(t, err)
	require.False(t, waited)

	// Burst exhausted: the third call within the refill window must block.
	waited, err = l.Wait(ctx)
	require.NoError(t, err)
	require.True(t, waited)
}

func TestRetryForkStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := RetryFork(func() error {
		attempts++
		return backoff.Permanent(errors.New("not worth retrying"))
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryForkRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	err := RetryFork(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}
