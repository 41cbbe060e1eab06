package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ccs/pkg/logger"
)

func newRedisGate(t *testing.T, window time.Duration, max int) (*RedisWindowGate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWindowGate(client, window, max, logger.NewNoopLogger()), mr
}

func TestRedisWindowGateDeniesOverBudget(t *testing.T) {
	g, _ := newRedisGate(t, 30*time.Second, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := g.Admit(ctx, "client-a")
		require.True(t, res.Allowed)
		assert.Equal(t, 3-(i+1), res.Remaining)
	}

	res := g.Admit(ctx, "client-a")
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, 30*time.Second)
}

func TestRedisWindowGateWindowExpiry(t *testing.T) {
	g, mr := newRedisGate(t, 30*time.Second, 1)
	ctx := context.Background()

	require.True(t, g.Admit(ctx, "client-a").Allowed)
	require.False(t, g.Admit(ctx, "client-a").Allowed)

	mr.FastForward(31 * time.Second)
	assert.True(t, g.Admit(ctx, "client-a").Allowed)
}

func TestRedisWindowGateFailsOpenWhenRedisDown(t *testing.T) {
	g, mr := newRedisGate(t, 30*time.Second, 1)
	ctx := context.Background()

	mr.Close()
	res := g.Admit(ctx, "client-a")
	assert.True(t, res.Allowed, "gate unavailability must admit, not reject")
}
