package conn

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/rkv/lib/store"
)

// Chain is an ordered, immutable sequence of handlers. The first handler that
// produces a connection wins, later handlers are not asked.
type Chain struct {
	handlers []IHandler
}

// NewChain creates a new chain from the given handlers (evaluated in order).
// The last handler should always produce a connection or fail (e.g. a
// CreateHandler), an exhausted chain is reported as ErrChainExhausted.
func NewChain(handlers ...IHandler) *Chain {
	hs := make([]IHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &Chain{handlers: hs}
}

// DefaultChain assembles the default chain of resolvable objects:
// reentrant atomic scope, cached ad hoc connection, provider (if not nil)
// and fresh connections from the factory (store.Open if nil).
func DefaultChain(provide ProviderFunc, create store.Factory) *Chain {
	handlers := []IHandler{NewReentrantAtomicHandler(), NewCachedAdHocHandler()}
	if provide != nil {
		handlers = append(handlers, NewProviderHandler(provide))
	}
	return NewChain(append(handlers, NewCreateHandler(create))...)
}

// Handlers returns a copy of the handlers of the chain
func (c *Chain) Handlers() []IHandler {
	return append([]IHandler(nil), c.handlers...)
}

// Resolve walks the chain and returns the first connection produced.
// The winning handler is recorded in ec (delegating handlers record the
// effective handler themselves).
func (c *Chain) Resolve(ctx context.Context, ec *ExecContext, sel Selector) (store.IConn, error) {
	for _, h := range c.handlers {
		conn, err := h.Resolve(ctx, ec, sel)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", h.Name(), err)
		}
		if conn == nil {
			continue
		}

		if _, ok := h.(delegating); !ok {
			ec.setWinner(h)
		}
		diagnose(CategoryResolve, handlerName(ec.Winner()), "resolved %s connection to %s", sel.Kind, store.Redact(sel.Target.String()))
		return conn, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrChainExhausted, store.Redact(sel.Target.String()))
}
