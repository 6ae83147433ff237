package conn

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/store"
)

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

// AtomicCapability declares whether connections resolved by a handler may
// host an atomic scope.
type AtomicCapability uint8

const (
	AtomicForbidden AtomicCapability = iota // must not host an atomic scope
	AtomicAllowed                           // may open a new atomic scope
	AtomicReentrant                         // joins the atomic scope that is already open
)

func (c AtomicCapability) String() string {
	switch c {
	case AtomicAllowed:
		return "allowed"
	case AtomicReentrant:
		return "reentrant"
	default:
		return "forbidden"
	}
}

// Kind is the kind of operation a connection is resolved for.
type Kind uint8

const (
	KindAdHoc  Kind = iota // a single command outside any scope
	KindAtomic             // an atomic (MULTI/EXEC) scope
	KindBatch              // a batch (pipeline) scope
)

func (k Kind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindBatch:
		return "batch"
	default:
		return "ad hoc"
	}
}

// Selector describes a resolution request: the target to connect to and the
// kind of operation the connection is needed for.
type Selector struct {
	Target Target
	Kind   Kind
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IHandler is a single connection resolution strategy of a responsibility chain.
type IHandler interface {
	// Name identifies the handler in logs, errors and diagnostics.
	Name() string

	// Resolve tries to produce a connection for the selector. A nil connection
	// with a nil error means the handler has nothing to offer and the next
	// handler of the chain is asked.
	Resolve(ctx context.Context, ec *ExecContext, sel Selector) (store.IConn, error)

	// AllowsAtomic declares whether connections of this handler may host atomic scopes.
	AllowsAtomic() AtomicCapability

	// AllowsBatch declares whether connections of this handler may host batch scopes.
	AllowsBatch() bool
}

// delegating is implemented by handlers that record the effective winning
// handler in the ExecContext themselves. The chain must not overwrite it.
type delegating interface {
	recordsWinner()
}

// releasing is implemented by handlers whose connections are fresh, exclusive
// checkouts. Such connections are closed once the scope they were resolved for
// ends, and are the only ones cached for ad hoc use.
type releasing interface {
	releasesConn() bool
}

// releases reports whether connections resolved by h are owned by the caller
func releases(h IHandler) bool {
	r, ok := h.(releasing)
	return ok && r.releasesConn()
}

// handlerName returns the name of h, tolerating nil
func handlerName(h IHandler) string {
	if h == nil {
		return "<none>"
	}
	return h.Name()
}
