package lockmgr

import (
	"context"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
)

// ILockManager defines the interface for a lock manager.
type ILockManager interface {
	// AcquireLock acquires the lock for the given key. A ttl of 0 means the lock never expires.
	// Return a boolean indicating whether the lock was acquired, an owner ID, and an error if any.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (ok bool, ownerID string, err error)

	// AcquireWait retries AcquireLock with backoff until the lock is acquired
	// or maxWait has passed. It returns ok=false (and no error) on timeout.
	AcquireWait(ctx context.Context, key string, ttl, maxWait time.Duration) (ok bool, ownerID string, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return true if the lock did not exist.
	ReleaseLock(ctx context.Context, key string, ownerID string) (ok bool, err error)
}

// Executor runs single commands and atomic blocks against a store.
// *conn.Access implements it.
type Executor interface {
	Do(ctx context.Context, name string, args ...any) (any, error)
	RunAtomic(ctx context.Context, block conn.Block) (*conn.MultiResult, error)
}
