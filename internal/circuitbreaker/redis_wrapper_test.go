package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMiniredisWrapper(t *testing.T) (*RedisWrapper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWrapper(client, "test", zaptest.NewLogger(t)), mr
}

func TestRedisWrapper_SessionOperations(t *testing.T) {
	w, mr := newMiniredisWrapper(t)
	ctx := context.Background()

	require.NoError(t, w.Ping(ctx).Err())
	require.NoError(t, w.Set(ctx, "tailor:session:s1", `{"id":"s1"}`, time.Hour).Err())

	got, err := w.Get(ctx, "tailor:session:s1").Result()
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s1"}`, got)

	ttl, err := w.TTL(ctx, "tailor:session:s1").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, w.LPush(ctx, "tailor:user:u1", id).Err())
	}
	require.NoError(t, w.LTrim(ctx, "tailor:user:u1", 0, 1).Err())
	ids, err := w.LRange(ctx, "tailor:user:u1", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s2"}, ids)

	ok, err := w.Expire(ctx, "tailor:user:u1", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("tailor:user:u1"))

	n, err := w.Del(ctx, "tailor:session:s1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, w.IsCircuitBreakerOpen())
}

func TestRedisWrapper_MissIsNotAFailure(t *testing.T) {
	w, _ := newMiniredisWrapper(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.Equal(t, redis.Nil, w.Get(ctx, "tailor:session:missing").Err())
	}
	assert.False(t, w.IsCircuitBreakerOpen())
}

func TestRedisWrapper_OpensWhenServerIsDown(t *testing.T) {
	w, mr := newMiniredisWrapper(t)
	mr.Close()
	ctx := context.Background()

	for i := 0; i < int(ConfigFor(ProfileRedis).FailureThreshold); i++ {
		assert.Error(t, w.Ping(ctx).Err())
	}
	assert.True(t, w.IsCircuitBreakerOpen())
	assert.ErrorIs(t, w.Get(ctx, "tailor:session:s1").Err(), ErrCircuitBreakerOpen)
}
