package conn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAtomic(t *testing.T) {
	target := memTarget(t)
	f := &recordingFactory{}
	access := NewAccess(DefaultChain(nil, f.open), target)
	ctx := context.Background()

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		v, err := c.Do(ctx, "SET", "a", 1)
		assert.Equal(t, store.Queued, v)
		_, _ = c.Do(ctx, "INCR", "a")
		_, _ = c.Do(ctx, "GET", "a")
		return err
	})
	require.NoError(t, err)
	assert.True(t, res.Successful())
	assert.Equal(t, []any{"OK", int64(2), "2"}, res.Values())

	require.Equal(t, 1, f.count())
	assert.EqualValues(t, 1, f.conns[0].atomics.Load())
	assert.True(t, f.conns[0].closed.Load(), "fresh connection must be released after the scope")
}

func TestRunAtomicNestedJoinsOuterScope(t *testing.T) {
	target := memTarget(t)
	f := &recordingFactory{}
	access := NewAccess(DefaultChain(nil, f.open), target)
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	var outer, inner, innermost store.Commander
	var nested *MultiResult

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		outer = c
		assert.True(t, ec.InAtomic())
		_, _ = c.Do(ctx, "SET", "a", "x")

		var err error
		nested, err = access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
			inner = c
			_, _ = c.Do(ctx, "SET", "b", "y")
			_, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
				innermost = c
				_, err := c.Do(ctx, "SET", "c", "z")
				return err
			})
			return err
		})
		return err
	})
	require.NoError(t, err)
	assert.False(t, ec.InAtomic(), "atomic slot must be cleared")

	assert.Same(t, outer, inner)
	assert.Same(t, outer, innermost)
	assert.Equal(t, 3, res.Len())
	assert.True(t, res.Successful())

	// joined calls report the placeholders of their own commands
	assert.Equal(t, []any{store.Queued, store.Queued}, nested.Values())

	// one connection, one atomic scope
	assert.Equal(t, 1, f.count())
	assert.EqualValues(t, 1, f.conns[0].atomics.Load())

	v, err := access.Do(ctx, "GET", "c")
	require.NoError(t, err)
	assert.Equal(t, "z", v)
}

func TestRunAtomicClearsScopeOnError(t *testing.T) {
	target := memTarget(t)
	access := NewAccess(DefaultChain(nil, nil), target)
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	boom := errors.New("boom")
	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
	assert.False(t, ec.InAtomic())

	// nothing was applied
	v, err := access.Do(ctx, "EXISTS", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestRunAtomicClearsScopeOnPanic(t *testing.T) {
	target := memTarget(t)
	access := NewAccess(DefaultChain(nil, nil), target)
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
			require.True(t, ec.InAtomic())
			_, _ = c.Do(ctx, "SET", "a", "1")
			panic("boom")
		})
	})
	assert.False(t, ec.InAtomic())

	// the unit is usable again and nothing was applied
	v, err := access.Do(ctx, "EXISTS", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, err := c.Do(ctx, "SET", "a", "2")
		return err
	})
	require.NoError(t, err)
	assert.True(t, res.Successful())
}

func TestRunAtomicPrimitiveErrorPropagates(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx := context.Background()

	// unknown commands abort the whole unit
	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		_, _ = c.Do(ctx, "NOPE")
		return nil
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "EXECABORT")

	v, err := access.Do(ctx, "GET", "a")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRunAtomicPerCommandErrors(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx := context.Background()

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "abc")
		_, _ = c.Do(ctx, "INCR", "a")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, res.Successful())
	assert.Nil(t, res.At(0).Err)
	assert.Equal(t, store.RetCNotInteger, store.CodeOf(res.At(1).Err))
	assert.Error(t, res.Err())
}

func TestRunBatch(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx := context.Background()
	_, err := access.Do(ctx, "SET", "s", "abc")
	require.NoError(t, err)

	res, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		_, _ = c.Do(ctx, "INCR", "s") // fails
		_, _ = c.Do(ctx, "SET", "b", "2")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())
	assert.False(t, res.Successful())
	assert.Equal(t, "OK", res.At(0).Value)
	assert.Error(t, res.At(1).Err)
	assert.Equal(t, "OK", res.At(2).Value)
	assert.Nil(t, res.Errors()[0])
}

func TestRunBatchNesting(t *testing.T) {
	f := &recordingFactory{}
	access := NewAccess(DefaultChain(nil, f.open), memTarget(t))
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	var outer, inner store.Commander
	res, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		outer = c
		assert.True(t, ec.InBatch())
		_, _ = c.Do(ctx, "SET", "a", "1")
		_, err := access.Pipelined(ctx, func(ctx context.Context, c store.Commander) error {
			inner = c
			_, err := c.Do(ctx, "SET", "b", "2")
			return err
		})
		return err
	})
	require.NoError(t, err)
	assert.Same(t, outer, inner)
	assert.Equal(t, 2, res.Len())
	assert.Equal(t, 1, f.count())
	assert.EqualValues(t, 1, f.conns[0].batches.Load())
	assert.False(t, ec.InBatch())
}

func TestRunBatchInsideAtomicJoinsAtomic(t *testing.T) {
	f := &recordingFactory{}
	access := NewAccess(DefaultChain(nil, f.open), memTarget(t))
	ctx := context.Background()

	res, err := access.Transaction(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		_, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
			_, err := c.Do(ctx, "INCR", "a")
			return err
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"OK", int64(2)}, res.Values())
	assert.Equal(t, 1, f.count())
	assert.EqualValues(t, 0, f.conns[0].batches.Load())
}

func TestRunAtomicInsideBatchOpensOwnScope(t *testing.T) {
	f := &recordingFactory{}
	access := NewAccess(DefaultChain(nil, f.open), memTarget(t))
	ctx := context.Background()

	_, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
			_, err := c.Do(ctx, "SET", "b", "2")
			return err
		})
		if err == nil {
			assert.Equal(t, []any{"OK"}, res.Values())
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.count())
}

func TestAdHocInsideAtomicIsQueued(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		v, err := access.Do(ctx, "SET", "a", "1")
		assert.Equal(t, store.Queued, v)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"OK"}, res.Values())
}

// Scenario: concurrent units never observe each others atomic scope.
func TestConcurrentUnitsAreIsolated(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))

	const units = 2
	var (
		wg      sync.WaitGroup
		inside  sync.WaitGroup
		yielded [units]store.Commander
		errs    [units]error
	)
	inside.Add(units)
	wg.Add(units)
	for i := 0; i < units; i++ {
		go func(i int) {
			defer wg.Done()
			ctx, ec := NewUnit(context.Background())
			defer ec.Close()
			_, errs[i] = access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
				yielded[i] = c
				inside.Done()
				inside.Wait() // both scopes are open at the same time
				_, err := c.Do(ctx, "INCR", "counter")
				return err
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotSame(t, yielded[0], yielded[1])

	v, err := access.Do(context.Background(), "GET", "counter")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestScopedCommanderUnusableAfterScope(t *testing.T) {
	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx := context.Background()

	var leaked store.Commander
	_, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		leaked = c
		return nil
	})
	require.NoError(t, err)

	_, err = leaked.Do(ctx, "GET", "a")
	assert.ErrorIs(t, err, ErrScopeClosed)
}

func TestMiddlewareWrapsFreshConnections(t *testing.T) {
	t.Cleanup(func() { ResetMiddleware() })
	counter := &countingMiddleware{}
	before := Version()
	assert.Greater(t, Use(counter), before)
	assert.Equal(t, []string{"counting"}, Middlewares())

	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	_, err := access.Do(ctx, "SET", "a", "1")
	require.NoError(t, err)
	_, err = access.Do(ctx, "GET", "a")
	require.NoError(t, err)
	_, err = access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		_, err := c.Do(ctx, "GET", "a")
		return err
	})
	require.NoError(t, err)

	// one cached ad hoc connection, one fresh connection for the scope
	assert.EqualValues(t, 2, counter.wrapped.Load())

	ResetMiddleware()
	assert.Empty(t, Middlewares())
}

func TestBuiltinMiddleware(t *testing.T) {
	t.Cleanup(func() { ResetMiddleware() })
	Use(LoggingMiddleware(), MetricsMiddleware())
	assert.Equal(t, []string{"logging", "metrics"}, Middlewares())

	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	ctx := context.Background()
	res, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		_, _ = c.Do(ctx, "SET", "a", "1")
		_, _ = c.Do(ctx, "GET", "a")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"OK", "1"}, res.Values())

	v, err := access.Do(ctx, "GET", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}
