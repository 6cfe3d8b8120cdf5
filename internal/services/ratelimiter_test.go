package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/cache"
)

func newTestLimiter(maxIP, maxUser int) (*RateLimiter, *cache.MemoryCounterStore) {
	store := cache.NewMemoryCounterStore()
	return NewRateLimiter(store, RateLimitConfig{Window: time.Minute, MaxPerIP: maxIP, MaxPerUser: maxUser}), store
}

func TestRateLimiter_IPLimitAfterMax(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(3, 10)

	for i := 0; i < 3; i++ {
		res, err := limiter.CheckAndConsume(ctx, "1.2.3.4", "")
		require.NoError(t, err)
		assert.False(t, res.Limited)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.CheckAndConsume(ctx, "1.2.3.4", "")
	require.NoError(t, err)
	assert.True(t, res.Limited)
	assert.Equal(t, LimitIP, res.LimitType)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, res.RetryAfterSeconds, 60)
}

func TestRateLimiter_GuestNeverTrackedPerUser(t *testing.T) {
	ctx := context.Background()
	limiter, store := newTestLimiter(100, 1)

	for i := 0; i < 5; i++ {
		res, _ := limiter.CheckAndConsume(ctx, "1.1.1.1", "guest")
		assert.False(t, res.Limited)
		res, _ = limiter.CheckAndConsume(ctx, "1.1.1.1", "")
		assert.False(t, res.Limited)
	}
	assert.Equal(t, 1, store.Len(), "only the IP counter should exist")
}

func TestRateLimiter_UsersSharingIPAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(100, 2)

	for i := 0; i < 2; i++ {
		res, _ := limiter.CheckAndConsume(ctx, "10.0.0.1", "alice")
		require.False(t, res.Limited)
	}
	res, _ := limiter.CheckAndConsume(ctx, "10.0.0.1", "alice")
	assert.True(t, res.Limited)
	assert.Equal(t, LimitUser, res.LimitType)

	res, _ = limiter.CheckAndConsume(ctx, "10.0.0.1", "bob")
	assert.False(t, res.Limited)
	assert.Equal(t, 1, res.Remaining)
}

func TestRateLimiter_RemainingIsMinimumOfBoth(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(10, 5)

	res, _ := limiter.CheckAndConsume(ctx, "1.1.1.1", "u1")
	assert.Equal(t, 4, res.Remaining)
}

func TestRateLimiter_IPShortCircuitsUserCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(1, 2)

	_, _ = limiter.CheckAndConsume(ctx, "9.9.9.9", "other")
	for i := 0; i < 3; i++ {
		res, _ := limiter.CheckAndConsume(ctx, "9.9.9.9", "carol")
		require.True(t, res.Limited)
		require.Equal(t, LimitIP, res.LimitType)
	}

	// les tentatives bloquées par IP n'ont rien consommé côté utilisateur
	res, _ := limiter.CheckAndConsume(ctx, "8.8.8.8", "carol")
	assert.False(t, res.Limited)
	res, _ = limiter.CheckAndConsume(ctx, "7.7.7.7", "carol")
	assert.False(t, res.Limited)

	res, _ = limiter.CheckAndConsume(ctx, "6.6.6.6", "carol")
	assert.True(t, res.Limited)
	assert.Equal(t, LimitUser, res.LimitType)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
	assert.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
}
