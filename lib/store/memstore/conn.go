package memstore

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// Scheme is the target scheme of in-process engines ("mem://<name>/<db>").
const Scheme = "mem"

// engines holds the named engines shared by all connections of this process
var engines = xsync.NewMapOf[string, *Engine]()

func init() {
	store.Register(Scheme, Open)
}

// Named returns the engine registered under name, creating it on first use.
func Named(name string) *Engine {
	e, _ := engines.LoadOrCompute(name, func() *Engine {
		log.Debugf("created in-process engine %q", name)
		return NewEngine(nil)
	})
	return e
}

// Drop closes and forgets the engine registered under name.
func Drop(name string) {
	if e, ok := engines.LoadAndDelete(name); ok {
		_ = e.Close()
	}
}

// Open is the store.Factory for "mem://" targets. Every call returns a new
// connection, all connections of the same name share one engine.
func Open(_ context.Context, target string) (store.IConn, error) {
	u, db, err := store.CheckScheme(target, Scheme)
	if err != nil {
		return nil, err
	}
	return NewConn(Named(u.Host), db, target), nil
}

// NewConn creates a connection to a logical database of an engine.
func NewConn(engine *Engine, db int, target string) store.IConn {
	return &memConn{
		engine: engine,
		db:     db,
		target: target,
	}
}

// memConn implements store.IConn on top of an Engine
type memConn struct {
	engine *Engine
	db     int
	target string
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IConn)
// --------------------------------------------------------------------------

func (c *memConn) Do(ctx context.Context, name string, args ...any) (any, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.engine.Exec(c.db, store.NewCommand(name, args...))
}

func (c *memConn) Atomic(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	q := &store.CommandQueue{}
	if err := fn(q); err != nil {
		return nil, err
	}
	return c.engine.ExecAtomic(c.db, q.Commands())
}

func (c *memConn) Batch(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	q := &store.CommandQueue{}
	if err := fn(q); err != nil {
		return nil, err
	}
	return c.engine.ExecBatch(c.db, q.Commands()), nil
}

func (c *memConn) Target() string {
	return c.target
}

func (c *memConn) Close() error {
	c.closed.Store(true)
	return nil
}

// check returns an error if the connection is closed or the context is done
func (c *memConn) check(ctx context.Context) error {
	if c.closed.Load() {
		return store.ErrClosed
	}
	return ctx.Err()
}
