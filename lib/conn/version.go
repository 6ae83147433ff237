package conn

import (
	"sync/atomic"

	"github.com/ValentinKolb/rkv/lib/store"
)

// middlewareState is the registered middleware together with its version.
// It is replaced as a whole, never modified.
type middlewareState struct {
	version     uint64
	middlewares []Middleware
}

var mwState atomic.Pointer[middlewareState]

func init() {
	mwState.Store(&middlewareState{version: 1})
}

// update atomically replaces the middleware state and increments the version
func update(fn func(current []Middleware) []Middleware) uint64 {
	for {
		old := mwState.Load()
		next := &middlewareState{version: old.version + 1, middlewares: fn(old.middlewares)}
		if mwState.CompareAndSwap(old, next) {
			return next.version
		}
	}
}

// Version returns the current middleware version. Ad hoc connections cached
// under an older version are discarded on their next resolution.
func Version() uint64 {
	return mwState.Load().version
}

// BumpVersion increments the middleware version without changing the
// middleware, forcing all execution units to resolve new ad hoc connections.
func BumpVersion() uint64 {
	v := update(func(current []Middleware) []Middleware { return current })
	Logger.Debugf("middleware version bumped to %d", v)
	return v
}

// Use registers middleware for all connections resolved afterwards and bumps
// the middleware version. The first registered middleware is the outermost.
func Use(mws ...Middleware) uint64 {
	v := update(func(current []Middleware) []Middleware {
		next := make([]Middleware, 0, len(current)+len(mws))
		next = append(next, current...)
		for _, mw := range mws {
			if mw != nil {
				next = append(next, mw)
			}
		}
		return next
	})
	Logger.Infof("registered %d middleware(s), middleware version is now %d", len(mws), v)
	return v
}

// ResetMiddleware removes all middleware and bumps the middleware version.
func ResetMiddleware() uint64 {
	return update(func([]Middleware) []Middleware { return nil })
}

// Middlewares returns the names of the registered middleware
func Middlewares() []string {
	mws := mwState.Load().middlewares
	names := make([]string, len(mws))
	for i, mw := range mws {
		names[i] = mw.Name()
	}
	return names
}

// wrap applies the registered middleware to a fresh connection
func wrap(c store.IConn) store.IConn {
	mws := mwState.Load().middlewares
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i].Wrap(c)
	}
	return c
}
