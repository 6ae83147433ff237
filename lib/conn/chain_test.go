package conn

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainShortCircuit(t *testing.T) {
	target := memTarget(t)
	c := pinned(t, target)

	absent := &stubHandler{name: "absent"}
	winner := &stubHandler{name: "winner", conn: c}
	later := &stubHandler{name: "later", conn: pinned(t, target)}

	chain := NewChain(absent, winner, later)
	ec := NewExecContext()

	for i := 0; i < 3; i++ {
		got, err := chain.Resolve(context.Background(), ec, Selector{Target: target})
		require.NoError(t, err)
		assert.Same(t, c, got)
	}

	assert.EqualValues(t, 3, absent.calls.Load())
	assert.EqualValues(t, 3, winner.calls.Load())
	assert.EqualValues(t, 0, later.calls.Load(), "handlers after the winner must not be asked")
	assert.Same(t, winner, ec.Winner())
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain(NewReentrantAtomicHandler(), NewCachedAdHocHandler())
	_, err := chain.Resolve(context.Background(), NewExecContext(), Selector{Target: memTarget(t)})
	assert.ErrorIs(t, err, ErrChainExhausted)
}

func TestChainWrapsHandlerErrors(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(NewCreateHandler(func(context.Context, string) (store.IConn, error) {
		return nil, boom
	}))
	_, err := chain.Resolve(context.Background(), NewExecContext(), Selector{Target: memTarget(t)})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "handler create")

	chain = NewChain(NewCreateHandler(func(context.Context, string) (store.IConn, error) {
		return nil, nil
	}))
	_, err = chain.Resolve(context.Background(), NewExecContext(), Selector{Target: memTarget(t)})
	assert.ErrorIs(t, err, ErrNoConnection)
}

// Scenario: first ad hoc call resolves a fresh connection, the second one of
// the same unit reuses it from the cache.
func TestCachedAdHocReuse(t *testing.T) {
	target := memTarget(t)
	f := &recordingFactory{}
	chain := NewChain(NewReentrantAtomicHandler(), NewCachedAdHocHandler(), NewCreateHandler(f.open))
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	first, owned, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, "create", ec.Winner().Name())

	second, owned, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Equal(t, "cached-ad-hoc", ec.Winner().Name())
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.count())
}

func TestVersionBumpInvalidatesCachedConnection(t *testing.T) {
	target := memTarget(t)
	f := &recordingFactory{}
	chain := DefaultChain(nil, f.open)
	ctx, ec := NewUnit(context.Background())
	defer ec.Close()

	var events []string
	SetDiagnosticHook(func(category, key, _ string) {
		events = append(events, category+"/"+key)
	})
	defer SetDiagnosticHook(nil)

	first, _, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)

	before := Version()
	assert.Equal(t, before+1, BumpVersion())

	second, _, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "create", ec.Winner().Name(), "stale connection must fall through")
	assert.True(t, f.conns[0].closed.Load(), "stale connection must be closed")
	assert.Contains(t, events, CategoryInvalidate+"/cached-ad-hoc")

	// the new connection is cached under the new version
	third, _, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	assert.Same(t, second, third)
}

func TestInvalidateExecContext(t *testing.T) {
	target := memTarget(t)
	f := &recordingFactory{}
	chain := DefaultChain(nil, f.open)
	ctx, ec := NewUnit(context.Background())

	_, _, err := resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	ec.Invalidate()
	assert.True(t, f.conns[0].closed.Load())

	_, _, err = resolveAdHoc(ctx, chain, ec, target, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count())
	ec.Close()
	assert.True(t, f.conns[1].closed.Load())
}

func TestProviderHandler(t *testing.T) {
	target := memTarget(t)
	other := memTarget(t)
	var requested []string

	chain := DefaultChain(func(ctx context.Context, normalized string) (store.IConn, error) {
		requested = append(requested, normalized)
		// violates the provider contract on purpose
		return pinned(t, other), nil
	}, nil)

	var events []string
	SetDiagnosticHook(func(category, key, _ string) {
		events = append(events, category+"/"+key)
	})
	defer SetDiagnosticHook(nil)

	ec := NewExecContext()
	c, err := chain.Resolve(context.Background(), ec, Selector{Target: target, Kind: KindBatch})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "provider", ec.Winner().Name())
	assert.Equal(t, []string{target.String()}, requested)
	assert.Contains(t, events, CategoryResolve+"/provider-target-mismatch")
}

func TestDiagnosticHookPanicDoesNotAffectResolution(t *testing.T) {
	SetDiagnosticHook(func(string, string, string) { panic("hook") })
	defer SetDiagnosticHook(nil)

	access := NewAccess(DefaultChain(nil, nil), memTarget(t))
	v, err := access.Do(context.Background(), "PING")
	require.NoError(t, err)
	assert.Equal(t, "PONG", v)
}

func TestTargetNormalization(t *testing.T) {
	a := MustTarget("MEM://Name", 3)
	b := MustTarget("mem://name/7", 3)
	assert.Equal(t, "mem://name/3", a.String())
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, 3, a.DB())

	_, err := NewTarget("mem://name", -1)
	assert.Error(t, err)
	assert.True(t, Target{}.IsZero())
}
