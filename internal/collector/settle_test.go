package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitSettled_SatisfiedAfterPolls(t *testing.T) {
	var calls int32
	ok := AwaitSettled(context.Background(), time.Millisecond, time.Second, func() bool {
		return atomic.AddInt32(&calls, 1) >= 3
	})
	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAwaitSettled_TimesOut(t *testing.T) {
	start := time.Now()
	ok := AwaitSettled(context.Background(), 5*time.Millisecond, 30*time.Millisecond, func() bool { return false })
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAwaitSettled_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := AwaitSettled(ctx, time.Millisecond, time.Hour, func() bool { return false })
	assert.False(t, ok)
}

func TestRequestLimiter_SpacesRequests(t *testing.T) {
	l := newRequestLimiter(20 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRequestLimiter_RespectsContext(t *testing.T) {
	l := newRequestLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestRequestLimiter_ZeroIntervalDoesNotWait(t *testing.T) {
	l := newRequestLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
