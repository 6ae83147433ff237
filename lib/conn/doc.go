// Package conn implements connection resolution and transactional execution
// on top of the store contracts (see package store).
//
// Every operation on a resolvable object first decides which connection to
// use. This decision is made by a chain of handlers (chain of responsibility),
// each handler is one resolution strategy with a fixed capability contract:
// may connections of this handler host atomic scopes, batch scopes or both?
//
// Key Components:
//
//   - Handlers (IHandler): ReentrantAtomicHandler (joins the open atomic
//     scope), CachedAdHocHandler (per unit ad hoc cache, invalidated by the
//     middleware version), ProviderHandler (external provider, e.g. a pool),
//     CreateHandler (fresh connections, terminal handler), InstanceHandler
//     (pinned connection), OwnerHandler (resolves through the chain of the
//     owning object) and StandaloneHandler (override, pinned or fresh).
//
//   - Chain: Evaluates handlers in order, the first connection wins and the
//     winning handler is recorded in the ExecContext.
//
//   - ExecContext: The state of one execution unit. Go has no goroutine local
//     storage, so the context is carried in context.Context. Use NewUnit for
//     every goroutine that runs operations concurrently.
//
//   - RunAtomic / RunBatch: Open an atomic (MULTI/EXEC) or batch (pipeline)
//     scope on the resolved connection. Nested calls within one unit join the
//     open scope and are yielded the same connection.
//
//   - Fallback (Mode): If the winning handler does not allow the requested
//     scope, strict mode fails before any command runs, warn and permissive
//     mode execute each command individually and report failures through
//     MultiResult.Successful.
//
//   - Middleware: Fresh connections are wrapped by all registered middleware
//     (Use). Registering middleware bumps the middleware version, cached ad hoc
//     connections of an older version are dropped lazily on their next use.
//
// Example:
//
//	target := conn.MustTarget("mem://app", 0)
//	access := conn.NewAccess(conn.DefaultChain(nil, nil), target)
//
//	ctx, ec := conn.NewUnit(context.Background())
//	defer ec.Close()
//
//	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
//		_, _ = c.Do(ctx, "SET", "user:1:name", "alice")
//		_, _ = c.Do(ctx, "INCR", "users")
//		return nil
//	})
package conn
