package dedup

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, "test", DefaultWindow)
}

func TestRedisRejectsWithinWindow(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	req := putAdmin42()

	d, err := s.CheckAndRegister(ctx, req)
	require.NoError(t, err)
	assert.True(t, d.Admitted)

	d, err = s.CheckAndRegister(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, 3, d.RetryAfterSeconds)

	mr.FastForward(1500 * time.Millisecond)
	d, err = s.CheckAndRegister(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Admitted)
	assert.Equal(t, 2, d.RetryAfterSeconds)

	mr.FastForward(2 * time.Second)
	d, err = s.CheckAndRegister(ctx, req)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
}

func TestRedisKeyPrefix(t *testing.T) {
	mr, s := newTestRedis(t)
	_, err := s.CheckAndRegister(context.Background(), putAdmin42())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+Key(putAdmin42())))
}

func TestRedisReadsPassThrough(t *testing.T) {
	mr, s := newTestRedis(t)
	req := putAdmin42()
	req.Method = http.MethodGet

	for i := 0; i < 3; i++ {
		d, err := s.CheckAndRegister(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, d.Admitted)
	}
	assert.Empty(t, mr.Keys())
}

func TestRedisFailsOpen(t *testing.T) {
	mr, s := newTestRedis(t)
	mr.Close()

	d, err := s.CheckAndRegister(context.Background(), putAdmin42())
	assert.Error(t, err)
	assert.True(t, d.Admitted)
}

func TestNewRedisDefaults(t *testing.T) {
	s := NewRedis(nil, "", 0)
	assert.Equal(t, "dedup", s.prefix)
	assert.Equal(t, DefaultWindow, s.window)
}
