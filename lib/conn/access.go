package conn

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger is the logger of the conn package
var Logger = logger.GetLogger("conn")

// Access is the public execution API of a resolvable object: a chain and the
// target it resolves connections for. It implements IOwner, so objects owned
// by it can delegate resolution to its chain (see OwnerHandler).
type Access struct {
	chain  *Chain
	target Target
}

// NewAccess creates a new access for target resolving through chain
func NewAccess(chain *Chain, target Target) *Access {
	return &Access{chain: chain, target: target}
}

// Chain returns the chain of the access
func (a *Access) Chain() *Chain {
	return a.chain
}

// Target returns the target of the access
func (a *Access) Target() Target {
	return a.target
}

// Connection resolves an ad hoc connection.
//
// If ctx carries an ExecContext, fresh connections are cached in it and reused
// by later ad hoc calls of the same unit until the middleware version changes.
// The returned connection can always be closed by the caller: closing a
// cached, pinned or scoped connection has no effect, closing a fresh
// connection of a context without ExecContext releases it.
func (a *Access) Connection(ctx context.Context) (store.IConn, error) {
	ctx, ec, transient, release := ensure(ctx)
	c, owned, err := resolveAdHoc(ctx, a.chain, ec, a.target, !transient)
	if err != nil {
		release()
		return nil, err
	}
	if owned && transient {
		// not cached, the caller releases c
		return c, nil
	}
	if transient {
		release()
	}
	return borrowed{c}, nil
}

// Do executes a single command on an ad hoc connection
func (a *Access) Do(ctx context.Context, name string, args ...any) (any, error) {
	ctx, ec, transient, release := ensure(ctx)
	defer release()

	c, owned, err := resolveAdHoc(ctx, a.chain, ec, a.target, !transient)
	if err != nil {
		return nil, err
	}
	if owned && transient {
		defer releaseConn(ec.Winner(), c)
	}
	return c.Do(ctx, name, args...)
}

// RunAtomic runs block as one indivisible unit (see RunAtomic)
func (a *Access) RunAtomic(ctx context.Context, block Block) (*MultiResult, error) {
	return RunAtomic(ctx, a.chain, a.target, block)
}

// Transaction is an alias of RunAtomic
func (a *Access) Transaction(ctx context.Context, block Block) (*MultiResult, error) {
	return a.RunAtomic(ctx, block)
}

// RunBatch sends all commands of block together (see RunBatch)
func (a *Access) RunBatch(ctx context.Context, block Block) (*MultiResult, error) {
	return RunBatch(ctx, a.chain, a.target, block)
}

// Pipelined is an alias of RunBatch
func (a *Access) Pipelined(ctx context.Context, block Block) (*MultiResult, error) {
	return a.RunBatch(ctx, block)
}

// resolveAdHoc resolves an ad hoc connection. owned reports whether c is an
// exclusive checkout, if cache is set such checkouts are cached in ec under the
// middleware version captured before resolving.
func resolveAdHoc(ctx context.Context, chain *Chain, ec *ExecContext, target Target, cache bool) (c store.IConn, owned bool, err error) {
	version := Version()
	c, err = chain.Resolve(ctx, ec, Selector{Target: target, Kind: KindAdHoc})
	if err != nil {
		return nil, false, err
	}
	if owned = releases(ec.Winner()); owned && cache {
		ec.setCached(target.String(), c, version)
	}
	return c, owned, nil
}

// borrowed is a connection the caller does not own, Close has no effect
type borrowed struct {
	store.IConn
}

func (b borrowed) Close() error {
	return nil
}
