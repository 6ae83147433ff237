// Package lockmgr implements a locking mechanism on top of any store that can
// be reached through a conn.Access (memstore, raft shards, rkv RPC, redis).
// It provides a simple way to coordinate access to shared resources across
// multiple processes or nodes.
//
// The lockmgr only ever stores in the provided store and has no other internal
// state. Therefore it is safe to be created multiple times on the same store.
// It is even possible to create a new lockmgr for every acquire or release
// operation. As long as the same store is used every time, all locks will
// work as expected.
//
// Implementation Approach:
//
//	- Lock Acquisition: SET key owner NX PX ttl. Only one requester can
//	  create the key. The value is a random UUID that identifies the holder.
//
//	- Timeouts: Locks can be created with a ttl after which the store
//	  removes them, preventing deadlocks if a client crashes.
//
//	- Safe Release: EXISTS and DELIFEQ run in one atomic unit, so the key is
//	  only deleted while it still holds the owner ID. Backends without DELIFEQ
//	  (redis) use a compare-and-delete script instead.
//
//	- Waiting: AcquireWait polls with a fibonacci backoff (go-retry) until
//	  the lock is free or the maximum wait time has passed.
//
// Usage Example:
//
//	access := conn.NewAccess(conn.DefaultChain(nil, nil), conn.MustTarget("rkv+tcp://localhost:8080?shard=200", 0))
//	locks := lockmgr.NewLockManager(access)
//
//	acquired, ownerID, err := locks.AcquireLock(ctx, "resource:123", 30*time.Second)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    released, err := locks.ReleaseLock(ctx, "resource:123", ownerID)
//	}
//
// Security Considerations:
//
//	Owner IDs are random, which protects against accidental lock stealing.
//	It is not designed to resist malicious attacks, anyone with access to the
//	store can manipulate lock data directly.
package lockmgr
