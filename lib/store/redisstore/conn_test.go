package redisstore

import (
	"context"
	"testing"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	assert.Nil(t, convert(nil))
	assert.Equal(t, "x", convert([]byte("x")))
	assert.Equal(t, int64(1), convert(true))
	assert.Equal(t, "1.5", convert(1.5))
	assert.Equal(t, []any{"a", int64(2), []any{"b"}}, convert([]any{"a", int64(2), []any{[]byte("b")}}))
}

func TestReply(t *testing.T) {
	ctx := context.Background()

	cmd := redis.NewCmd(ctx, "get", "missing")
	cmd.SetErr(redis.Nil)
	v, err := reply(cmd)
	assert.NoError(t, err)
	assert.Nil(t, v)

	cmd = redis.NewCmd(ctx, "incr", "a")
	cmd.SetVal(int64(3))
	v, err = reply(cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, []any{"set", "a", "1", "ex", "10"}, commandArgs("SET", []any{"a", 1, "ex", 10}))
}

func TestOpen(t *testing.T) {
	t.Cleanup(func() { _ = CloseClients() })
	target, err := store.NormalizeTarget("redis://localhost:6379", 2)
	require.NoError(t, err)

	// no connection is dialed before the first command
	c1, err := store.Open(context.Background(), target)
	require.NoError(t, err)
	c2, err := store.Open(context.Background(), target)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, target, c1.Target())

	client, err := Client(target)
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)

	require.NoError(t, c1.Close())
	_, err = c1.Do(context.Background(), "PING")
	assert.ErrorIs(t, err, store.ErrClosed)

	_, err = Open(context.Background(), "mem://x/0")
	assert.Error(t, err)
}
