package conn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/lib/store/memstore"
	"github.com/google/uuid"
)

// recordingConn wraps a connection and counts what reaches it
type recordingConn struct {
	store.IConn
	dos     atomic.Int64
	atomics atomic.Int64
	batches atomic.Int64
	closed  atomic.Bool
}

func (c *recordingConn) Do(ctx context.Context, name string, args ...any) (any, error) {
	c.dos.Add(1)
	return c.IConn.Do(ctx, name, args...)
}

func (c *recordingConn) Atomic(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	c.atomics.Add(1)
	return c.IConn.Atomic(ctx, fn)
}

func (c *recordingConn) Batch(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	c.batches.Add(1)
	return c.IConn.Batch(ctx, fn)
}

func (c *recordingConn) Close() error {
	c.closed.Store(true)
	return c.IConn.Close()
}

// memTarget creates a target on a fresh in-process engine that is dropped after the test
func memTarget(t *testing.T) Target {
	name := uuid.NewString()
	t.Cleanup(func() { memstore.Drop(name) })
	return MustTarget("mem://"+name, 0)
}

// recordingFactory opens memstore connections and remembers all of them
type recordingFactory struct {
	mu    sync.Mutex
	conns []*recordingConn
}

func (f *recordingFactory) open(ctx context.Context, target string) (store.IConn, error) {
	c, err := memstore.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	rc := &recordingConn{IConn: c}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns = append(f.conns, rc)
	return rc, nil
}

func (f *recordingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// stubHandler yields a fixed connection (or absent) and counts its calls
type stubHandler struct {
	name  string
	conn  store.IConn
	calls atomic.Int64
}

func (h *stubHandler) Name() string                   { return h.name }
func (h *stubHandler) AllowsAtomic() AtomicCapability { return AtomicAllowed }
func (h *stubHandler) AllowsBatch() bool              { return true }

func (h *stubHandler) Resolve(context.Context, *ExecContext, Selector) (store.IConn, error) {
	h.calls.Add(1)
	return h.conn, nil
}

// withConfig sets the fallback configuration for the duration of a test
func withConfig(t *testing.T, c Config) {
	prev := CurrentConfig()
	Configure(c)
	t.Cleanup(func() { Configure(prev) })
}

// pinned creates a memstore connection for target wrapped in a recordingConn
func pinned(t *testing.T, target Target) *recordingConn {
	c, err := memstore.Open(context.Background(), target.String())
	if err != nil {
		t.Fatal(err)
	}
	return &recordingConn{IConn: c}
}

// countingMiddleware counts the connections it wrapped
type countingMiddleware struct {
	wrapped atomic.Int64
}

func (m *countingMiddleware) Name() string { return "counting" }

func (m *countingMiddleware) Wrap(next store.IConn) store.IConn {
	m.wrapped.Add(1)
	return next
}
