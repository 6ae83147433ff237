package conn

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/rkv/lib/store"
)

// ErrNoConnection is returned by terminal handlers whose factory produced neither
// a connection nor an error.
var ErrNoConnection = errors.New("conn: factory returned no connection")

// --------------------------------------------------------------------------
// Reentrant-Atomic Handler
// --------------------------------------------------------------------------

// ReentrantAtomicHandler returns the connection of the atomic scope that is
// open in the ExecContext, so nested atomic calls join the outer scope
// instead of opening a second one. It must be the first handler of a chain.
type ReentrantAtomicHandler struct{}

// NewReentrantAtomicHandler creates a new reentrant atomic handler
func NewReentrantAtomicHandler() IHandler {
	return &ReentrantAtomicHandler{}
}

func (h *ReentrantAtomicHandler) Name() string                   { return "reentrant-atomic" }
func (h *ReentrantAtomicHandler) AllowsAtomic() AtomicCapability { return AtomicReentrant }
func (h *ReentrantAtomicHandler) AllowsBatch() bool              { return false }

func (h *ReentrantAtomicHandler) Resolve(_ context.Context, ec *ExecContext, sel Selector) (store.IConn, error) {
	s := ec.currentAtomic()
	if s == nil || s.target != sel.Target.String() {
		return nil, nil
	}
	return s.conn, nil
}

// --------------------------------------------------------------------------
// Cached Ad Hoc Handler
// --------------------------------------------------------------------------

// CachedAdHocHandler returns the ad hoc connection cached in the ExecContext
// for the target, as long as it was resolved under the current middleware
// version. Stale connections are closed and dropped, the request falls
// through to the next handler. It only serves ad hoc requests.
type CachedAdHocHandler struct{}

// NewCachedAdHocHandler creates a new cached ad hoc handler
func NewCachedAdHocHandler() IHandler {
	return &CachedAdHocHandler{}
}

func (h *CachedAdHocHandler) Name() string                   { return "cached-ad-hoc" }
func (h *CachedAdHocHandler) AllowsAtomic() AtomicCapability { return AtomicForbidden }
func (h *CachedAdHocHandler) AllowsBatch() bool              { return false }

func (h *CachedAdHocHandler) Resolve(_ context.Context, ec *ExecContext, sel Selector) (store.IConn, error) {
	if sel.Kind != KindAdHoc {
		return nil, nil
	}
	target := sel.Target.String()
	cached, ok := ec.cached(target)
	if !ok {
		return nil, nil
	}

	// Connection is still valid
	current := Version()
	if cached.version == current {
		return cached.conn, nil
	}

	// Middleware changed since the connection was resolved -> discard it
	ec.dropCached(target)
	if err := cached.conn.Close(); err != nil {
		Logger.Warningf("failed to close stale ad hoc connection to %s: %v", store.Redact(target), err)
	}
	diagnose(CategoryInvalidate, h.Name(), "dropped ad hoc connection to %s (version %d, current %d)", store.Redact(target), cached.version, current)
	return nil, nil
}

// --------------------------------------------------------------------------
// Provider-Delegating Handler
// --------------------------------------------------------------------------

// ProviderFunc supplies connections for a normalized target, e.g. a pool
// checkout. The connection must already be scoped to the logical database of
// the target. Returning nil, nil means the provider has no connection.
type ProviderFunc func(ctx context.Context, target string) (store.IConn, error)

// ProviderHandler delegates resolution to an externally supplied provider.
// Every call is assumed to yield an exclusive checkout that is safe for any
// kind of scope and is released (closed) when the scope ends.
type ProviderHandler struct {
	provide ProviderFunc
}

// NewProviderHandler creates a new provider delegating handler
func NewProviderHandler(provide ProviderFunc) IHandler {
	return &ProviderHandler{provide: provide}
}

func (h *ProviderHandler) Name() string                   { return "provider" }
func (h *ProviderHandler) AllowsAtomic() AtomicCapability { return AtomicAllowed }
func (h *ProviderHandler) AllowsBatch() bool              { return true }
func (h *ProviderHandler) releasesConn() bool             { return true }

func (h *ProviderHandler) Resolve(ctx context.Context, _ *ExecContext, sel Selector) (store.IConn, error) {
	if h.provide == nil {
		return nil, nil
	}
	target := sel.Target.String()
	c, err := h.provide(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("connection provider: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	// Best effort check of the provider contract
	if got := c.Target(); got != "" && got != target {
		Logger.Warningf("provider returned a connection for %s, requested %s", store.Redact(got), store.Redact(target))
		diagnose(CategoryResolve, "provider-target-mismatch", "requested %s, got %s", store.Redact(target), store.Redact(got))
	}
	return wrap(c), nil
}

// --------------------------------------------------------------------------
// Always-Create Handler
// --------------------------------------------------------------------------

// CreateHandler synthesizes a new, uncached connection on every call.
// It never yields absent and is used as the terminal handler of a chain.
type CreateHandler struct {
	create store.Factory
}

// NewCreateHandler creates a new always-create handler. A nil factory opens
// connections through the store registry (store.Open).
func NewCreateHandler(create store.Factory) IHandler {
	if create == nil {
		create = store.Open
	}
	return &CreateHandler{create: create}
}

func (h *CreateHandler) Name() string                   { return "create" }
func (h *CreateHandler) AllowsAtomic() AtomicCapability { return AtomicAllowed }
func (h *CreateHandler) AllowsBatch() bool              { return true }
func (h *CreateHandler) releasesConn() bool             { return true }

func (h *CreateHandler) Resolve(ctx context.Context, _ *ExecContext, sel Selector) (store.IConn, error) {
	c, err := h.create(ctx, sel.Target.String())
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoConnection, store.Redact(sel.Target.String()))
	}
	return wrap(c), nil
}

// --------------------------------------------------------------------------
// Single-Cached-Instance Handler
// --------------------------------------------------------------------------

// IPinner is implemented by objects that may carry a caller-pinned connection.
type IPinner interface {
	// Pinned returns the pinned connection or nil.
	Pinned() store.IConn
}

// PinnerFunc adapts a function to IPinner.
type PinnerFunc func() store.IConn

func (f PinnerFunc) Pinned() store.IConn { return f() }

// InstanceHandler returns the single connection pinned on the resolving object.
// A long-lived shared connection can not multiplex concurrent scopes, so it
// allows neither atomic nor batch scopes.
type InstanceHandler struct {
	pinner IPinner
}

// NewInstanceHandler creates a new single cached instance handler
func NewInstanceHandler(pinner IPinner) IHandler {
	return &InstanceHandler{pinner: pinner}
}

func (h *InstanceHandler) Name() string                   { return "instance" }
func (h *InstanceHandler) AllowsAtomic() AtomicCapability { return AtomicForbidden }
func (h *InstanceHandler) AllowsBatch() bool              { return false }

func (h *InstanceHandler) Resolve(_ context.Context, _ *ExecContext, _ Selector) (store.IConn, error) {
	if h.pinner == nil {
		return nil, nil
	}
	return h.pinner.Pinned(), nil
}

// --------------------------------------------------------------------------
// Owner-Delegating Handler
// --------------------------------------------------------------------------

// IOwner is implemented by resolvable objects that own other resources
// (e.g. a record owning its list and hash fields). *Access implements it.
type IOwner interface {
	Chain() *Chain
	Target() Target
}

// OwnerHandler resolves through the chain of the owning object instead of
// resolving independently. The effective capability is the one of the handler
// that won inside the owner's chain, it is recorded there and not overwritten.
// The static capability methods report the conservative default.
type OwnerHandler struct {
	owner IOwner
}

// NewOwnerHandler creates a new owner delegating handler
func NewOwnerHandler(owner IOwner) IHandler {
	return &OwnerHandler{owner: owner}
}

func (h *OwnerHandler) Name() string                   { return "owner" }
func (h *OwnerHandler) AllowsAtomic() AtomicCapability { return AtomicForbidden }
func (h *OwnerHandler) AllowsBatch() bool              { return false }
func (h *OwnerHandler) recordsWinner()                 {}

func (h *OwnerHandler) Resolve(ctx context.Context, ec *ExecContext, sel Selector) (store.IConn, error) {
	if h.owner == nil {
		return nil, nil
	}
	return h.owner.Chain().Resolve(ctx, ec, Selector{Target: h.owner.Target(), Kind: sel.Kind})
}

// --------------------------------------------------------------------------
// Standalone Handler
// --------------------------------------------------------------------------

// IStandalone is implemented by resources without an owner.
type IStandalone interface {
	// OverrideConn returns a connection explicitly supplied for the resource or nil.
	OverrideConn() store.IConn
	// Pinned returns the connection pinned to the resource instance or nil.
	Pinned() store.IConn
}

// StandaloneHandler resolves, in order, the explicit override connection, the
// instance-pinned connection or a fresh connection for the default target.
// It records the effective sub-handler as winner: overrides allow every scope,
// pinned connections none (see InstanceHandler), fresh ones every scope (see
// CreateHandler).
type StandaloneHandler struct {
	resource IStandalone
	override IHandler
	instance IHandler
	create   IHandler
}

// NewStandaloneHandler creates a new standalone handler. A nil factory opens
// fresh connections through the store registry.
func NewStandaloneHandler(resource IStandalone, create store.Factory) IHandler {
	return &StandaloneHandler{
		resource: resource,
		override: &overrideHandler{resource: resource},
		instance: NewInstanceHandler(PinnerFunc(resource.Pinned)),
		create:   NewCreateHandler(create),
	}
}

func (h *StandaloneHandler) Name() string                   { return "standalone" }
func (h *StandaloneHandler) AllowsAtomic() AtomicCapability { return AtomicForbidden }
func (h *StandaloneHandler) AllowsBatch() bool              { return false }
func (h *StandaloneHandler) recordsWinner()                 {}

func (h *StandaloneHandler) Resolve(ctx context.Context, ec *ExecContext, sel Selector) (store.IConn, error) {
	for _, sub := range []IHandler{h.override, h.instance, h.create} {
		c, err := sub.Resolve(ctx, ec, sel)
		if err != nil {
			return nil, err
		}
		if c != nil {
			ec.setWinner(sub)
			return c, nil
		}
	}
	return nil, nil
}

// overrideHandler serves the explicit override connection of a standalone resource
type overrideHandler struct {
	resource IStandalone
}

func (h *overrideHandler) Name() string                   { return "standalone-override" }
func (h *overrideHandler) AllowsAtomic() AtomicCapability { return AtomicAllowed }
func (h *overrideHandler) AllowsBatch() bool              { return true }

func (h *overrideHandler) Resolve(_ context.Context, _ *ExecContext, _ Selector) (store.IConn, error) {
	return h.resource.OverrideConn(), nil
}
