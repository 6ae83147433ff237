package conn

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/store"
)

// Block is the body of an atomic or batch operation. Every command must be
// issued through c, the commands of the block are the commands of the scope.
type Block func(ctx context.Context, c store.Commander) error

// RunAtomic resolves a connection for target through chain and runs block as
// one indivisible unit on it.
//
//   - Inside an open atomic scope on the same target (reentrant handler) the
//     block joins that scope, the same commander is yielded.
//   - If the winning handler allows atomic scopes a new one is opened. It is
//     the open atomic scope of ec until RunAtomic returns.
//   - Otherwise the fallback mode decides (see Configure).
//
// Errors of the block and of the atomic primitive are returned unmodified,
// per command errors are part of the MultiResult.
func RunAtomic(ctx context.Context, chain *Chain, target Target, block Block) (*MultiResult, error) {
	ctx, ec, _, release := ensure(ctx)
	defer release()

	c, err := chain.Resolve(ctx, ec, Selector{Target: target, Kind: KindAtomic})
	if err != nil {
		return nil, err
	}
	winner := ec.Winner()

	switch winner.AllowsAtomic() {
	case AtomicReentrant:
		if s := ec.scopeOf(c); s != nil {
			return join(ctx, s, block)
		}
		// a reentrant handler only answers inside an open scope
		return openScope(ctx, ec, KindAtomic, winner, c, target, block)
	case AtomicAllowed:
		return openScope(ctx, ec, KindAtomic, winner, c, target, block)
	default:
		return handleFallback(ctx, ec, KindAtomic, winner, c, target, block)
	}
}

// Transaction is an alias of RunAtomic
func Transaction(ctx context.Context, chain *Chain, target Target, block Block) (*MultiResult, error) {
	return RunAtomic(ctx, chain, target, block)
}

// openScope opens a new atomic or batch scope on c and runs block in it
func openScope(ctx context.Context, ec *ExecContext, kind Kind, winner IHandler, c store.IConn, target Target, block Block) (*MultiResult, error) {
	s := newScope(kind, target.String(), c, false)
	restore := ec.open(s)
	defer func() {
		restore()
		s.close()
		releaseConn(winner, c)
	}()

	fn := func(inner store.Commander) error {
		s.bind(inner)
		return block(ctx, s.conn)
	}

	var (
		replies []store.Reply
		err     error
	)
	if kind == KindAtomic {
		replies, err = c.Atomic(ctx, fn)
	} else {
		replies, err = c.Batch(ctx, fn)
	}
	if err != nil {
		return nil, err
	}
	return newMultiResult(replies), nil
}

// releaseConn closes c if it is an exclusive checkout of winner
func releaseConn(winner IHandler, c store.IConn) {
	if !releases(winner) {
		return
	}
	if err := c.Close(); err != nil {
		Logger.Warningf("failed to release connection to %s: %v", store.Redact(c.Target()), err)
	}
}
