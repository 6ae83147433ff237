package record

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/lib/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memTarget(t *testing.T) conn.Target {
	name := uuid.NewString()
	t.Cleanup(func() { memstore.Drop(name) })
	return conn.MustTarget("mem://"+name, 0)
}

func withConfig(t *testing.T, c conn.Config) {
	prev := conn.CurrentConfig()
	conn.Configure(c)
	t.Cleanup(func() { conn.Configure(prev) })
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)

	user := New("user:1", target)
	user.Set("name", "alice")
	user.Set("age", 42)
	require.NoError(t, user.Save(ctx))

	loaded := New("user:1", target)
	ok, err := loaded.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"name": "alice", "age": "42"}, loaded.Fields())

	age, ok := loaded.Get("age")
	assert.True(t, ok)
	assert.Equal(t, "42", age)

	ok, err = New("user:2", target).Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnedTypesJoinRecordScope(t *testing.T) {
	ctx := context.Background()
	user := New("user:1", memTarget(t))
	tags := user.List("tags")
	visits := user.Counter("visits")
	user.Set("name", "alice")

	res, err := user.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		if err := user.Save(ctx); err != nil {
			return err
		}
		n, err := tags.Push(ctx, "a", "b")
		assert.Zero(t, n, "queued inside the scope")
		if err != nil {
			return err
		}
		_, err = visits.Incr(ctx, 5)
		return err
	})
	require.NoError(t, err)
	assert.True(t, res.Successful())
	assert.Equal(t, []any{int64(1), int64(2), int64(5)}, res.Values())

	values, err := tags.Range(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, values)
	assert.Equal(t, "user:1:tags", tags.Key())
}

func TestOwnedTypesJoinRecordBatch(t *testing.T) {
	ctx := context.Background()
	user := New("user:1", memTarget(t))
	roles := user.SetKey("roles")
	scores := user.SortedSet("scores")

	res, err := user.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = roles.Add(ctx, "admin", "dev")
		_, _ = scores.IncrBy(ctx, "x", 1.5)
		_, _ = c.Do(ctx, "INCR", "user:1:logins")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
	assert.Equal(t, int64(2), res.At(0).Value)
	assert.Equal(t, "1.5", res.At(1).Value)
	assert.Equal(t, int64(1), res.At(2).Value)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	user := New("user:1", memTarget(t))
	prefs := user.Hash("prefs")
	user.Set("name", "alice")
	require.NoError(t, user.Save(ctx))
	_, err := prefs.Set(ctx, "theme", "dark")
	require.NoError(t, err)

	require.NoError(t, user.Delete(ctx))

	ok, err := user.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = prefs.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteReportsFailedReplies(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)
	pinned, err := store.Open(ctx, target.String())
	require.NoError(t, err)
	require.NoError(t, pinned.Close())

	withConfig(t, conn.Config{AtomicFallback: conn.ModePermissive})
	user := New("user:1", target, WithPinned(pinned))

	err = user.Delete(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestOwnedTypesAreTrackedOnce(t *testing.T) {
	ctx := context.Background()
	user := New("session:1", memTarget(t), WithTTL(time.Minute))
	for i := 0; i < 3; i++ {
		_, err := user.Counter("visits").Incr(ctx, 1)
		require.NoError(t, err)
	}
	user.List("items")

	assert.Equal(t, []string{"session:1:visits", "session:1:items"}, user.owned)
	require.NoError(t, user.Save(ctx))
}

func TestSaveWithTTL(t *testing.T) {
	ctx := context.Background()
	user := New("session:1", memTarget(t), WithTTL(time.Minute))
	items := user.List("items")
	_, err := items.Push(ctx, "x")
	require.NoError(t, err)

	user.Set("user", "alice")
	require.NoError(t, user.Save(ctx))

	ttl, err := user.TTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	v, err := items.Do(ctx, "PTTL", items.Key())
	require.NoError(t, err)
	assert.Greater(t, v.(int64), int64(0))
}

func TestPinnedRecordFollowsFallbackMode(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)
	pinned, err := store.Open(ctx, target.String())
	require.NoError(t, err)

	user := New("user:1", target, WithPinned(pinned))
	user.Set("name", "alice")

	withConfig(t, conn.Config{AtomicFallback: conn.ModeStrict})
	var modeErr *conn.OperationModeError
	require.ErrorAs(t, user.Save(ctx), &modeErr)
	assert.Equal(t, "instance", modeErr.Handler)

	withConfig(t, conn.Config{AtomicFallback: conn.ModePermissive})
	require.NoError(t, user.Save(ctx))

	ok, err := New("user:1", target).Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOverrideConnAllowsScopes(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)
	c, err := store.Open(ctx, target.String())
	require.NoError(t, err)

	withConfig(t, conn.Config{AtomicFallback: conn.ModeStrict})
	user := New("user:1", target, WithConn(c))
	user.Set("name", "alice")
	require.NoError(t, user.Save(ctx))

	_, err = c.Do(ctx, "PING")
	assert.NoError(t, err, "the caller keeps ownership of an override connection")
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)

	var calls atomic.Int64
	provide := func(ctx context.Context, target string) (store.IConn, error) {
		calls.Add(1)
		return store.Open(ctx, target)
	}

	counter := NewCounter("hits", target, WithProvider(provide))
	n, err := counter.Incr(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(1), calls.Load())

	user := New("user:1", target, WithProvider(provide))
	user.Set("name", "alice")
	require.NoError(t, user.Save(ctx))
	assert.Equal(t, int64(2), calls.Load())
}

func TestStandaloneTypes(t *testing.T) {
	ctx := context.Background()
	target := memTarget(t)

	list := NewList("l", target)
	_, err := list.Push(ctx, "b", "c")
	require.NoError(t, err)
	n, err := list.PushFront(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	v, ok, err := list.Pop(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	n, err = list.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	hash := NewHash("h", target)
	isNew, err := hash.Set(ctx, "f", "v")
	require.NoError(t, err)
	assert.True(t, isNew)
	_, err = hash.IncrBy(ctx, "n", 3)
	require.NoError(t, err)
	all, err := hash.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f": "v", "n": "3"}, all)
	_, ok, err = hash.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	removed, err := hash.Remove(ctx, "f", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	set := NewSet("s", target)
	_, err = set.Add(ctx, "x", "y", "x")
	require.NoError(t, err)
	members, err := set.Members(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, members)
	ok, err = set.Contains(ctx, "y")
	require.NoError(t, err)
	assert.True(t, ok)

	zset := NewSortedSet("z", target)
	_, err = zset.Add(ctx, Member{"b", 2}, Member{"a", 1}, Member{"c", 3})
	require.NoError(t, err)
	names, err := zset.Range(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	withScores, err := zset.RangeWithScores(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []Member{{"a", 1}}, withScores)
	score, ok, err := zset.Score(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3.0, score)
	_, ok, err = zset.Score(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	counter := NewCounter("c", target)
	n, err = counter.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a standalone type allows atomic scopes on fresh connections
	withConfig(t, conn.Config{AtomicFallback: conn.ModeStrict})
	res, err := counter.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = counter.Incr(ctx, 1)
		_, _ = counter.Incr(ctx, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, res.Values())
}
