package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/ValentinKolb/rkv/rpc/serializer"
	"github.com/ValentinKolb/rkv/rpc/server"
	"github.com/ValentinKolb/rkv/rpc/transport"
	"github.com/ValentinKolb/rkv/rpc/transport/tcp"
	"github.com/ValentinKolb/rkv/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShard = 100

// startServer runs a server with one memory shard and waits until it accepts connections
func startServer(t *testing.T, network, endpoint string, tr transport.IRPCServerTransport) {
	t.Helper()

	s := server.NewRPCServer(common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: testShard, Type: common.ShardTypeMemory}},
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: endpoint, WorkersPerConn: 4},
	}, tr, serializer.NewBinarySerializer())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		_ = CloseTransports()
		assert.NoError(t, s.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	require.Eventually(t, func() bool {
		c, err := net.Dial(network, endpoint)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func unixTarget(t *testing.T, serializerName string) string {
	t.Helper()

	// socket paths are limited to ~100 bytes, t.TempDir can be longer
	dir, err := os.MkdirTemp("", "rkv")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	socket := filepath.Join(dir, "rkv.sock")
	startServer(t, "unix", socket, unix.NewUnixServerTransport())
	return fmt.Sprintf("rkv+unix://local?shard=%d&serializer=%s&socket=%s", testShard, serializerName, socket)
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestParseOptions(t *testing.T) {
	target, err := store.NormalizeTarget("rkv+tcp://a:1?shard=7&conns=3&timeout=2&endpoints=b:2,c:3&serializer=json", 4)
	require.NoError(t, err)

	opts, err := ParseOptions(target)
	require.NoError(t, err)
	assert.Equal(t, SchemeTCP, opts.Scheme)
	assert.Equal(t, uint64(7), opts.ShardID)
	assert.Equal(t, 4, opts.DB)
	assert.Equal(t, "json", opts.Serializer)
	assert.Equal(t, 2, opts.Config.TimeoutSecond)
	assert.Equal(t, 3, opts.Config.Transport.ConnectionsPerEndpoint)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, opts.Config.Transport.Endpoints)

	_, err = ParseOptions("rkv+unix://local/0?shard=1")
	assert.Error(t, err, "unix targets need a socket")

	_, err = ParseOptions("rkv+tcp://a:1/0?shard=x")
	assert.Error(t, err)

	_, err = ParseOptions("rkv+tcp://a:1/0?serializer=xml")
	assert.Error(t, err)

	_, err = ParseOptions("redis://a:1/0")
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	for _, name := range []string{"tcp", "unix", "http", SchemeTCP, SchemeUnix, SchemeHTTP} {
		tr, err := NewTransport(name)
		require.NoError(t, err, name)
		assert.NotNil(t, tr)
	}
	_, err := NewTransport("quic")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	for _, s := range []string{"binary", "json", "gob"} {
		t.Run(s, func(t *testing.T) {
			target, err := store.NormalizeTarget(unixTarget(t, s), 1)
			require.NoError(t, err)
			ctx := context.Background()

			c, err := store.Open(ctx, target)
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, target, c.Target())

			v, err := c.Do(ctx, "SET", "a", 1)
			require.NoError(t, err)
			assert.Equal(t, "OK", v)

			v, err = c.Do(ctx, "GET", "a")
			require.NoError(t, err)
			assert.Equal(t, "1", v)

			v, err = c.Do(ctx, "GET", "missing")
			require.NoError(t, err)
			assert.Nil(t, v)

			v, err = c.Do(ctx, "INCR", "a")
			require.NoError(t, err)
			assert.Equal(t, int64(2), v)

			_, err = c.Do(ctx, "HSET", "a", "f", "v")
			assert.ErrorIs(t, err, store.NewError(store.RetCWrongType, ""))

			v, err = c.Do(ctx, "RPUSH", "l", "x", "y")
			require.NoError(t, err)
			assert.Equal(t, int64(2), v)

			v, err = c.Do(ctx, "LRANGE", "l", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []any{"x", "y"}, v)

			require.NoError(t, c.Close())
			_, err = c.Do(ctx, "PING")
			assert.ErrorIs(t, err, store.ErrClosed)
		})
	}
}

func TestDatabasesAreIsolated(t *testing.T) {
	base := unixTarget(t, "binary")
	ctx := context.Background()

	t0, err := store.NormalizeTarget(base, 0)
	require.NoError(t, err)
	t1, err := store.NormalizeTarget(base, 1)
	require.NoError(t, err)

	c0, err := store.Open(ctx, t0)
	require.NoError(t, err)
	c1, err := store.Open(ctx, t1)
	require.NoError(t, err)

	_, err = c0.Do(ctx, "SET", "k", "zero")
	require.NoError(t, err)

	v, err := c1.Do(ctx, "GET", "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAtomicAndBatch(t *testing.T) {
	target, err := store.NormalizeTarget(unixTarget(t, "binary"), 0)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := store.Open(ctx, target)
	require.NoError(t, err)

	replies, err := c.Atomic(ctx, func(q store.Commander) error {
		v, err := q.Do(ctx, "SET", "x", "1")
		assert.Equal(t, store.Queued, v)
		if err != nil {
			return err
		}
		_, err = q.Do(ctx, "INCR", "x")
		return err
	})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "OK", replies[0].Value)
	assert.Equal(t, int64(2), replies[1].Value)

	// unknown commands discard the whole unit
	_, err = c.Atomic(ctx, func(q store.Commander) error {
		_, _ = q.Do(ctx, "SET", "x", "5")
		_, err := q.Do(ctx, "NOPE")
		return err
	})
	assert.ErrorIs(t, err, store.NewError(store.RetCInvalidOperation, ""))
	v, err := c.Do(ctx, "GET", "x")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	// a failing command does not abort the others of a batch
	replies, err = c.Batch(ctx, func(q store.Commander) error {
		_, _ = q.Do(ctx, "SET", "s", "text")
		_, _ = q.Do(ctx, "INCR", "s")
		_, err := q.Do(ctx, "GET", "s")
		return err
	})
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.NoError(t, replies[0].Err)
	assert.ErrorIs(t, replies[1].Err, store.NewError(store.RetCNotInteger, ""))
	assert.Equal(t, "text", replies[2].Value)

	// empty units are not sent
	replies, err = c.Batch(ctx, func(store.Commander) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestAccessOverTCP(t *testing.T) {
	endpoint := freePort(t)
	startServer(t, "tcp", endpoint, tcp.NewTCPServerTransport())

	target := conn.MustTarget(fmt.Sprintf("rkv+tcp://%s?shard=%d&conns=2", endpoint, testShard), 3)
	access := conn.NewAccess(conn.DefaultChain(nil, nil), target)
	ctx := context.Background()

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		if _, err := c.Do(ctx, "HSET", "h", "a", "1", "b", "2"); err != nil {
			return err
		}
		_, err := c.Do(ctx, "HLEN", "h")
		return err
	})
	require.NoError(t, err)
	assert.True(t, res.Successful())
	assert.Equal(t, []any{int64(2), int64(2)}, res.Values())

	v, err := access.Do(ctx, "HGET", "h", "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestUnknownShard(t *testing.T) {
	base := unixTarget(t, "binary")
	ctx := context.Background()

	opts, err := ParseOptions(base)
	require.NoError(t, err)
	tr, err := transportFor(opts)
	require.NoError(t, err)

	c := NewConn(testShard+1, 0, base, tr, serializer.NewBinarySerializer())
	_, err = c.Do(ctx, "PING")
	assert.ErrorIs(t, err, store.NewError(store.RetCInvalidOperation, ""))
}
