// Package memstore implements an in-process, redis-like key-value engine and
// the store.IConn connections on top of it.
//
// The engine keeps numbered logical databases with strings, lists, sets,
// hashes and sorted sets. Keys can expire; expired keys are hidden immediately
// and removed lazily on access or by a periodic background sweep.
//
// Concurrency:
//
//	The keyspace is split into shards by the xxhash of the key, each shard has
//	its own mutex. A single command locks only the shards of the keys it
//	touches (all shards for KEYS, DBSIZE and FLUSHDB). An atomic command list
//	locks every shard for its whole execution, so other connections can never
//	observe a partially applied MULTI/EXEC block.
//
// Atomic semantics follow redis: unknown commands and wrong arities abort the
// whole list before anything is applied (EXECABORT), runtime errors such as
// WRONGTYPE are reported per command and do not roll back the others.
//
// Snapshots:
//
//	Save and Load write and read a gob encoded copy of all databases. They are
//	used by the replicated state machine (dstore) for raft snapshots.
//
// Usage Example:
//
//	conn, _ := store.Open(ctx, "mem://cache/0")
//	_, _ = conn.Do(ctx, "SET", "greeting", "hello", "EX", 60)
//	replies, err := conn.Atomic(ctx, func(c store.Commander) error {
//	    _, _ = c.Do(ctx, "INCR", "visits")
//	    _, _ = c.Do(ctx, "GET", "greeting")
//	    return nil
//	})
package memstore
