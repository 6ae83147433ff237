package record

import (
	"context"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store"
)

// Option configures a record or a standalone data type
type Option func(*options)

type options struct {
	provider conn.ProviderFunc
	factory  store.Factory
	override store.IConn
	pinned   store.IConn
	ttl      time.Duration
}

// WithProvider resolves connections through an external provider (e.g. a pool)
// before fresh ones are created. Only records and standalone types use it.
func WithProvider(provide conn.ProviderFunc) Option {
	return func(o *options) { o.provider = provide }
}

// WithFactory sets the factory for fresh connections (default store.Open)
func WithFactory(create store.Factory) Option {
	return func(o *options) { o.factory = create }
}

// WithConn makes every operation use c. The caller keeps ownership of c.
func WithConn(c store.IConn) Option {
	return func(o *options) { o.override = c }
}

// WithPinned pins a long-lived shared connection to the instance. A pinned
// connection can not host atomic or batch scopes, those follow the fallback mode.
func WithPinned(c store.IConn) Option {
	return func(o *options) { o.pinned = c }
}

// WithTTL makes Record.Save expire the record and all its fields after ttl
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// --------------------------------------------------------------------------
// resource (shared by records and data types)
// --------------------------------------------------------------------------

// resource is a resolvable object stored under one key. It implements
// conn.IStandalone for its own chain and conn.IOwner (via conn.Access) for
// the resources it owns.
type resource struct {
	*conn.Access
	key      string
	override store.IConn
	pinned   store.IConn
}

func newResource(key string, o options) *resource {
	return &resource{key: key, override: o.override, pinned: o.pinned}
}

// OverrideConn (docu see conn.IStandalone)
func (r *resource) OverrideConn() store.IConn { return r.override }

// Pinned (docu see conn.IStandalone)
func (r *resource) Pinned() store.IConn { return r.pinned }

// Key returns the store key of the resource
func (r *resource) Key() string { return r.key }

// Exists reports whether the key exists
func (r *resource) Exists(ctx context.Context) (bool, error) {
	v, err := r.Do(ctx, "EXISTS", r.key)
	return asInt(v) == 1, err
}

// Delete removes the key
func (r *resource) Delete(ctx context.Context) error {
	_, err := r.Do(ctx, "DEL", r.key)
	return err
}

// Expire sets the time to live of the key
func (r *resource) Expire(ctx context.Context, ttl time.Duration) (bool, error) {
	v, err := r.Do(ctx, "PEXPIRE", r.key, ttl.Milliseconds())
	return asInt(v) == 1, err
}

// standaloneChain is the chain of a resource without owner
func standaloneChain(r *resource, o options) *conn.Chain {
	handlers := []conn.IHandler{conn.NewReentrantAtomicHandler(), conn.NewCachedAdHocHandler()}
	if o.provider != nil {
		handlers = append(handlers, conn.NewProviderHandler(o.provider))
	}
	return conn.NewChain(append(handlers, conn.NewStandaloneHandler(r, o.factory))...)
}

// ownedChain is the chain of a resource owned by parent. Resolution is
// delegated to the parent, so the resource joins the scopes of its owner.
// The parent chain always yields a connection or an error.
func ownedChain(parent conn.IOwner) *conn.Chain {
	return conn.NewChain(
		conn.NewReentrantAtomicHandler(),
		conn.NewCachedAdHocHandler(),
		conn.NewOwnerHandler(parent),
	)
}
