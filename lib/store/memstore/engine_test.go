package memstore

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for expiration tests
type fakeClock struct {
	now atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	return c
}

func (c *fakeClock) Now() time.Time           { return time.UnixMilli(c.now.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.now.Add(d.Milliseconds()) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	clock := newFakeClock()
	e := NewEngine(&Config{Shards: 4, GCInterval: -1, Clock: clock.Now})
	t.Cleanup(func() { _ = e.Close() })
	return e, clock
}

func exec(t *testing.T, e *Engine, name string, args ...any) any {
	t.Helper()
	v, err := e.Exec(0, store.NewCommand(name, args...))
	require.NoError(t, err, "%s %v", name, args)
	return v
}

func TestStringCommands(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, "PONG", exec(t, e, "PING"))
	assert.Equal(t, "OK", exec(t, e, "SET", "k", "v"))
	assert.Equal(t, "v", exec(t, e, "GET", "k"))
	assert.Nil(t, exec(t, e, "GET", "missing"))

	// NX / XX
	assert.Nil(t, exec(t, e, "SET", "k", "other", "NX"))
	assert.Equal(t, "OK", exec(t, e, "SET", "k", "other", "XX"))
	assert.Nil(t, exec(t, e, "SET", "missing", "x", "XX"))
	assert.Equal(t, int64(0), exec(t, e, "SETNX", "k", "again"))
	assert.Equal(t, "other", exec(t, e, "GETSET", "k", "third"))

	// Counters
	assert.Equal(t, int64(1), exec(t, e, "INCR", "n"))
	assert.Equal(t, int64(11), exec(t, e, "INCRBY", "n", 10))
	assert.Equal(t, int64(8), exec(t, e, "DECRBY", "n", 3))
	_, err := e.Exec(0, store.NewCommand("INCR", "k"))
	assert.ErrorIs(t, err, store.NewError(store.RetCNotInteger, ""))

	assert.Equal(t, int64(3), exec(t, e, "APPEND", "s", "abc"))
	assert.Equal(t, int64(3), exec(t, e, "STRLEN", "s"))
	assert.Equal(t, int64(2), exec(t, e, "DEL", "s", "n", "missing"))
}

func TestUnknownCommandAndArity(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Exec(0, store.NewCommand("NOPE"))
	assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(err))

	_, err = e.Exec(0, store.NewCommand("GET"))
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	_, err = e.Exec(0, store.NewCommand("HSET", "h", "f"))
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
}

func TestWrongType(t *testing.T) {
	e, _ := newTestEngine(t)
	exec(t, e, "RPUSH", "list", "a")

	_, err := e.Exec(0, store.NewCommand("GET", "list"))
	assert.Equal(t, store.RetCWrongType, store.CodeOf(err))
	assert.Equal(t, "list", exec(t, e, "TYPE", "list"))
	assert.Equal(t, "none", exec(t, e, "TYPE", "missing"))

	// SET overwrites any kind
	assert.Equal(t, "OK", exec(t, e, "SET", "list", "now a string"))
	assert.Equal(t, "string", exec(t, e, "TYPE", "list"))
}

func TestExpiration(t *testing.T) {
	e, clock := newTestEngine(t)

	exec(t, e, "SET", "session", "x", "EX", 10)
	assert.Equal(t, int64(10), exec(t, e, "TTL", "session"))
	exec(t, e, "SET", "p", "x")
	assert.Equal(t, int64(-1), exec(t, e, "TTL", "p"))
	assert.Equal(t, int64(-2), exec(t, e, "TTL", "missing"))

	clock.Advance(9 * time.Second)
	assert.Equal(t, "x", exec(t, e, "GET", "session"))
	assert.Equal(t, int64(1000), exec(t, e, "PTTL", "session"))

	clock.Advance(time.Second)
	assert.Nil(t, exec(t, e, "GET", "session"))
	assert.Equal(t, int64(0), exec(t, e, "EXISTS", "session"))

	// PERSIST and non-positive EXPIRE
	exec(t, e, "SET", "k", "v", "PX", 500)
	assert.Equal(t, int64(1), exec(t, e, "PERSIST", "k"))
	clock.Advance(time.Second)
	assert.Equal(t, "v", exec(t, e, "GET", "k"))
	assert.Equal(t, int64(1), exec(t, e, "EXPIRE", "k", 0))
	assert.Nil(t, exec(t, e, "GET", "k"))
}

func TestQueryDoesNotRemoveExpiredKeys(t *testing.T) {
	e, clock := newTestEngine(t)
	exec(t, e, "SET", "k", "v", "EX", 1)
	clock.Advance(2 * time.Second)

	v, err := e.Query(0, store.NewCommand("GET", "k"))
	require.NoError(t, err)
	assert.Nil(t, v)

	// The expired entry is still physically present and removed by the sweep
	assert.Equal(t, 1, e.sweep(clock.Now().UnixMilli()))

	_, err = e.Query(0, store.NewCommand("SET", "k", "v"))
	assert.Error(t, err)
}

func TestCollections(t *testing.T) {
	e, _ := newTestEngine(t)

	// Lists
	assert.Equal(t, int64(3), exec(t, e, "LPUSH", "l", "a", "b", "c"))
	assert.Equal(t, int64(4), exec(t, e, "RPUSH", "l", "d"))
	assert.Equal(t, []any{"c", "b", "a", "d"}, exec(t, e, "LRANGE", "l", 0, -1))
	assert.Equal(t, []any{"a", "d"}, exec(t, e, "LRANGE", "l", -2, 100))
	assert.Equal(t, "c", exec(t, e, "LPOP", "l"))
	assert.Equal(t, "d", exec(t, e, "RPOP", "l"))
	exec(t, e, "RPUSH", "l", "b", "x", "b")
	assert.Equal(t, int64(2), exec(t, e, "LREM", "l", -2, "b"))
	assert.Equal(t, []any{"b", "a", "x"}, exec(t, e, "LRANGE", "l", 0, -1))

	// Hashes
	assert.Equal(t, int64(2), exec(t, e, "HSET", "h", "f1", "v1", "f2", "v2"))
	assert.Equal(t, int64(0), exec(t, e, "HSET", "h", "f1", "v1b"))
	assert.Equal(t, []any{"f1", "v1b", "f2", "v2"}, exec(t, e, "HGETALL", "h"))
	assert.Equal(t, int64(5), exec(t, e, "HINCRBY", "h", "n", 5))
	assert.Equal(t, int64(1), exec(t, e, "HEXISTS", "h", "n"))
	assert.Equal(t, int64(3), exec(t, e, "HLEN", "h"))

	// Sets
	assert.Equal(t, int64(2), exec(t, e, "SADD", "s", "b", "a", "b"))
	assert.Equal(t, []any{"a", "b"}, exec(t, e, "SMEMBERS", "s"))
	assert.Equal(t, int64(2), exec(t, e, "SREM", "s", "a", "b"))
	assert.Equal(t, int64(0), exec(t, e, "EXISTS", "s"), "empty containers are removed")

	// Sorted sets
	assert.Equal(t, int64(3), exec(t, e, "ZADD", "z", 2, "b", 1, "a", 2, "a2"))
	assert.Equal(t, []any{"a", "a2"}, exec(t, e, "ZRANGE", "z", 0, 1))
	assert.Equal(t, []any{"a", "1", "a2", "2", "b", "2"}, exec(t, e, "ZRANGE", "z", 0, -1, "WITHSCORES"))
	assert.Equal(t, "3.5", exec(t, e, "ZINCRBY", "z", 1.5, "b"))
	assert.Equal(t, "3.5", exec(t, e, "ZSCORE", "z", "b"))
	assert.Equal(t, int64(3), exec(t, e, "ZCARD", "z"))
}

func TestKeysFlushAndDatabases(t *testing.T) {
	e, _ := newTestEngine(t)
	exec(t, e, "SET", "user:1", "a")
	exec(t, e, "SET", "user:2", "b")
	exec(t, e, "SET", "order/1", "c")
	_, err := e.Exec(1, store.NewCommand("SET", "user:3", "other db"))
	require.NoError(t, err)

	assert.Equal(t, []any{"user:1", "user:2"}, exec(t, e, "KEYS", "user:*"))
	assert.Equal(t, []any{"order/1"}, exec(t, e, "KEYS", "*/?"))
	assert.Equal(t, int64(3), exec(t, e, "DBSIZE"))

	assert.Equal(t, "OK", exec(t, e, "FLUSHDB"))
	assert.Equal(t, int64(0), exec(t, e, "DBSIZE"))
	v, err := e.Exec(1, store.NewCommand("DBSIZE"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestExecAtomic(t *testing.T) {
	e, _ := newTestEngine(t)
	exec(t, e, "SET", "str", "x")

	replies, err := e.ExecAtomic(0, []store.Command{
		store.NewCommand("INCR", "n"),
		store.NewCommand("LPUSH", "str", "a"), // wrong type at runtime
		store.NewCommand("INCR", "n"),
	})
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Equal(t, int64(1), replies[0].Value)
	assert.Equal(t, store.RetCWrongType, store.CodeOf(replies[1].Err))
	assert.Equal(t, int64(2), replies[2].Value)

	// Queue time errors abort the whole list
	_, err = e.ExecAtomic(0, []store.Command{
		store.NewCommand("INCR", "n"),
		store.NewCommand("NOPE"),
	})
	require.Error(t, err)
	assert.Equal(t, "2", exec(t, e, "GET", "n"))
}

func TestExecAtomicIsIndivisible(t *testing.T) {
	e, _ := newTestEngine(t)
	const workers, rounds = 8, 200

	// Every atomic block moves one unit from a to b, a reader must always see a+b == 0
	var wg sync.WaitGroup
	var violations atomic.Int64
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, err := e.ExecAtomic(0, []store.Command{
					store.NewCommand("DECR", "a"),
					store.NewCommand("INCR", "b"),
				})
				assert.NoError(t, err)

				replies, err := e.ExecAtomic(0, []store.Command{
					store.NewCommand("GET", "a"),
					store.NewCommand("GET", "b"),
				})
				assert.NoError(t, err)
				a, _ := parseInt(replies[0].Value.(string))
				b, _ := parseInt(replies[1].Value.(string))
				if a+b != 0 {
					violations.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Equal(t, "-1600", exec(t, e, "GET", "a"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	exec(t, e, "SET", "k", "v", "EX", 100)
	exec(t, e, "ZADD", "z", 1, "a")
	exec(t, e, "SADD", "s", "m")
	_, err := e.Exec(3, store.NewCommand("HSET", "h", "f", "v"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.Save(&buf))

	restored, _ := newTestEngine(t)
	require.NoError(t, restored.Load(&buf))

	assert.Equal(t, "v", exec(t, restored, "GET", "k"))
	assert.Equal(t, int64(100), exec(t, restored, "TTL", "k"))
	assert.Equal(t, []any{"a"}, exec(t, restored, "ZRANGE", "z", 0, -1))
	assert.Equal(t, []any{"m"}, exec(t, restored, "SMEMBERS", "s"))
	v, err := restored.Exec(3, store.NewCommand("HGET", "h", "f"))
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "", true},
		{"*", "a/b", true},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{"h\\*llo", "h*llo", true},
		{"h\\*llo", "hello", false},
		{"user:*:name", "user:42:name", true},
		{"user:*:name", "user:42:mail", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.s, func(t *testing.T) {
			assert.Equal(t, tt.want, globMatch(tt.pattern, tt.s))
		})
	}
}

func TestConnFactory(t *testing.T) {
	ctx := context.Background()
	defer Drop("conn-test")

	c1, err := store.Open(ctx, "mem://conn-test/2")
	require.NoError(t, err)
	c2, err := store.Open(ctx, "mem://conn-test/2")
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "every open creates a new connection")

	_, err = c1.Do(ctx, "SET", "k", 42)
	require.NoError(t, err)
	v, err := c2.Do(ctx, "GET", "k")
	require.NoError(t, err)
	assert.Equal(t, "42", v, "connections of the same name share the engine")

	replies, err := c1.Batch(ctx, func(c store.Commander) error {
		v, err := c.Do(ctx, "INCR", "k")
		assert.Equal(t, store.Queued, v)
		_, _ = c.Do(ctx, "NOPE")
		return err
	})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, int64(43), replies[0].Value)
	assert.Error(t, replies[1].Err)

	require.NoError(t, c1.Close())
	_, err = c1.Do(ctx, "PING")
	assert.ErrorIs(t, err, store.ErrClosed)
}
