package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEveryPacesRequests(t *testing.T) {
	limiter := NewEvery("OpenLibrary", 40*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Equal(t, "OpenLibrary", limiter.Name())
}

func TestNewEveryZeroIntervalDoesNotBlock(t *testing.T) {
	limiter := NewEvery("unpaced", 0)
	for range 100 {
		assert.True(t, limiter.Allow())
	}
}

func TestWaitHonoursCancelledContext(t *testing.T) {
	limiter := NewEvery("slow", time.Hour)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for slow")
}

func TestNilLimiter(t *testing.T) {
	var limiter *Limiter
	require.NoError(t, limiter.Wait(context.Background()))
	assert.True(t, limiter.Allow())
}
