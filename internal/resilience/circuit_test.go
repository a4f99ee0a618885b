package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukaan-dev/backend-dukaan/internal/resilience"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "two failures out of two should trip the breaker")

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "cool-off elapsed, probe should be admitted")
	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "successful probe should close the breaker")
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, 30*time.Millisecond)
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx))

	time.Sleep(40 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "failed probe should reopen the breaker")
}

func TestBackoffGrowsWithAttempts(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	// With jitter the delay stays within the configured band.
	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
