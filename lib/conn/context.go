package conn

import (
	"context"
	"sync"

	"github.com/ValentinKolb/rkv/lib/store"
)

// cachedConn is an ad hoc connection and the middleware version it was resolved under
type cachedConn struct {
	conn    store.IConn
	version uint64
}

// ExecContext is the state of a single execution unit (usually one goroutine):
// the cached ad hoc connections per target, the open atomic and batch scopes
// and the handler that won the last resolution.
//
// An ExecContext must never be shared between concurrently running
// goroutines, use NewUnit to fork a new one for each of them.
type ExecContext struct {
	mu     sync.Mutex
	adHoc  map[string]cachedConn
	atomic *scope
	batch  *scope
	winner IHandler
}

type execContextKey struct{}

// NewExecContext creates a new, empty execution context
func NewExecContext() *ExecContext {
	return &ExecContext{adHoc: make(map[string]cachedConn)}
}

// WithExecContext returns a copy of ctx carrying ec
func WithExecContext(ctx context.Context, ec *ExecContext) context.Context {
	return context.WithValue(ctx, execContextKey{}, ec)
}

// ExecContextFrom returns the execution context carried by ctx, or nil
func ExecContextFrom(ctx context.Context) *ExecContext {
	ec, _ := ctx.Value(execContextKey{}).(*ExecContext)
	return ec
}

// NewUnit starts a new execution unit: the returned context carries a fresh
// ExecContext that shares nothing with the one in ctx (if any).
// Call Close on the ExecContext when the unit ends to release cached connections.
func NewUnit(ctx context.Context) (context.Context, *ExecContext) {
	ec := NewExecContext()
	return WithExecContext(ctx, ec), ec
}

// ensure returns ctx with an execution context attached. If ctx has none a
// transient one is created, it is closed by the returned release function.
func ensure(ctx context.Context) (context.Context, *ExecContext, bool, func()) {
	if ec := ExecContextFrom(ctx); ec != nil {
		return ctx, ec, false, func() {}
	}
	ctx, ec := NewUnit(ctx)
	return ctx, ec, true, func() { ec.Close() }
}

// Winner returns the handler that won the last resolution in this context
func (ec *ExecContext) Winner() IHandler {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.winner
}

func (ec *ExecContext) setWinner(h IHandler) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.winner = h
}

// InAtomic reports whether an atomic scope is open
func (ec *ExecContext) InAtomic() bool {
	return ec.currentAtomic() != nil
}

// InBatch reports whether a batch scope is open
func (ec *ExecContext) InBatch() bool {
	return ec.currentBatch() != nil
}

func (ec *ExecContext) currentAtomic() *scope {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.atomic
}

func (ec *ExecContext) currentBatch() *scope {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.batch
}

// scopeOf returns the open scope whose connection is c, or nil
func (ec *ExecContext) scopeOf(c store.IConn) *scope {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, s := range []*scope{ec.atomic, ec.batch} {
		if s != nil && store.IConn(s.conn) == c {
			return s
		}
	}
	return nil
}

// open stores s as the open scope of its kind and returns a function that
// restores the previous scope of that kind. The restore function must be
// called on every exit path.
func (ec *ExecContext) open(s *scope) (restore func()) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	slot := &ec.batch
	if s.kind == KindAtomic {
		slot = &ec.atomic
	}
	prev := *slot
	*slot = s

	return func() {
		ec.mu.Lock()
		defer ec.mu.Unlock()
		*slot = prev
	}
}

// --------------------------------------------------------------------------
// Ad Hoc Cache
// --------------------------------------------------------------------------

func (ec *ExecContext) cached(target string) (cachedConn, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	c, ok := ec.adHoc[target]
	return c, ok
}

func (ec *ExecContext) setCached(target string, c store.IConn, version uint64) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if old, ok := ec.adHoc[target]; ok && old.conn != c {
		_ = old.conn.Close()
	}
	ec.adHoc[target] = cachedConn{conn: c, version: version}
}

func (ec *ExecContext) dropCached(target string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	delete(ec.adHoc, target)
}

// Invalidate closes and drops all cached ad hoc connections of this context.
// The next ad hoc call resolves a new connection.
func (ec *ExecContext) Invalidate() {
	ec.mu.Lock()
	cached := ec.adHoc
	ec.adHoc = make(map[string]cachedConn)
	ec.mu.Unlock()

	for target, c := range cached {
		if err := c.conn.Close(); err != nil {
			Logger.Warningf("failed to close ad hoc connection to %s: %v", store.Redact(target), err)
		}
	}
}

// Close releases all cached connections. The context can still be used
// afterwards, it starts empty.
func (ec *ExecContext) Close() {
	ec.Invalidate()
	ec.setWinner(nil)
}
