// Package store defines the contracts between the connection-resolution core
// and the store backends, together with a small registry that maps target
// schemes to connection factories.
//
// The package focuses on:
//   - A single command surface (Commander) shared by real connections, queued
//     atomic/batch scopes and degraded individual execution
//   - A connection contract (IConn) exposing the two multi-command primitives
//     of a redis-like store: Atomic (MULTI/EXEC) and Batch (pipelining)
//   - Normalized target descriptors that include the logical database
//   - Unified error reporting through typed return codes
//
// Key Components:
//
//   - Commander: The generic Do(ctx, name, args...) entry point. Arguments are
//     converted to strings the way the redis protocol does (see Args), replies
//     are nil, string, int64 or []any.
//
//   - IConn: A single connection scoped to one target. Atomic and Batch hand a
//     queuing Commander to the callback, every Do inside the callback returns
//     the Queued placeholder and the real replies are returned once the scope
//     was sent to the backend. Per-command errors are part of the replies,
//     errors of the primitive itself are returned as error.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes (RetCode) and descriptive messages. Wrong-type and not-an-integer
//     errors of the in-process engine, unknown commands and invalid arguments
//     are all reported this way.
//
//   - Registry: Backends register a Factory for their target scheme in init
//     (Register). Open creates a connection for any normalized target.
//
// Implementations:
//
//	- In-process engine (memstore): "mem://<name>/<db>"
//	  Available in the "github.com/ValentinKolb/rkv/lib/store/memstore" package.
//
//	- Redis (redisstore): "redis://", "rediss://" backed by go-redis
//	  Available in the "github.com/ValentinKolb/rkv/lib/store/redisstore" package.
//
//	- Raft replicated engine (dstore): served by "rkv serve" and reached through the
//	  RPC client ("rkv+tcp://", "rkv+unix://", "rkv+http://").
//	  Available in the "github.com/ValentinKolb/rkv/lib/store/dstore" package.
package store
