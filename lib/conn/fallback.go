package conn

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/store"
)

// handleFallback decides what happens to an atomic or batch operation on a
// connection whose handler does not allow it (see Mode). Any mode that is not
// warn or permissive is treated as strict.
func handleFallback(ctx context.Context, ec *ExecContext, kind Kind, winner IHandler, c store.IConn, target Target, block Block) (*MultiResult, error) {
	mode := CurrentConfig().modeFor(kind)

	switch mode {
	case ModePermissive:
		diagnose(CategoryFallback, kind.String(), "executing %s operation individually on %s connection", kind, handlerName(winner))
	case ModeWarn:
		Logger.Warningf("%s operation not supported by %s handler, commands are executed individually (no %s guarantees)", kind, handlerName(winner), kind)
		diagnose(CategoryFallback, kind.String(), "warn: executing %s operation individually on %s connection", kind, handlerName(winner))
	default:
		diagnose(CategoryFallback, kind.String(), "rejected %s operation on %s connection (mode %s)", kind, handlerName(winner), mode)
		releaseConn(winner, c)
		return nil, &OperationModeError{Kind: kind, Handler: handlerName(winner)}
	}

	return runIndividually(ctx, ec, kind, winner, c, target, block)
}

// runIndividually runs block with an individual command proxy on c: every
// command is executed immediately and its reply or error is recorded.
func runIndividually(ctx context.Context, ec *ExecContext, kind Kind, winner IHandler, c store.IConn, target Target, block Block) (*MultiResult, error) {
	s := newScope(kind, target.String(), c, true)
	restore := ec.open(s)
	defer func() {
		restore()
		s.close()
		releaseConn(winner, c)
	}()

	if err := block(ctx, s.conn); err != nil {
		return nil, err
	}
	return newMultiResult(s.since(0)), nil
}
