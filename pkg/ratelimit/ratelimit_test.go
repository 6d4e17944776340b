package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	limiter := NewTokenBucket(3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within burst", i)
	}

	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed, "burst exhausted")
}

func TestTokenBucketRefill(t *testing.T) {
	limiter := NewTokenBucket(1, 10)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "user-1")
	require.False(t, allowed)

	// 10 tokens/sec refills a full token within 100ms.
	time.Sleep(150 * time.Millisecond)
	allowed, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketKeysIsolated(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "user-1")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "user-1")
	require.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "user-2")
	assert.True(t, allowed, "other keys keep their own bucket")
}

func TestTokenBucketReset(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "user-1")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "user-1")
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "user-1"))
	allowed, _ = limiter.Allow(ctx, "user-1")
	assert.True(t, allowed)
}
