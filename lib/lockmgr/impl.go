package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sethvargo/go-retry"
)

var log = logger.GetLogger("conn")

// compareAndDelete is used by backends without DELIFEQ (redis)
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// errLockHeld makes AcquireWait retry
var errLockHeld = errors.New("lock held by another owner")

type lockMgrImpl struct {
	exec Executor
	// first delay of AcquireWait
	backoff time.Duration
}

// NewLockManager creates a lock manager that stores its locks through exec
func NewLockManager(exec Executor) ILockManager {
	return &lockMgrImpl{
		exec:    exec,
		backoff: 10 * time.Millisecond,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ILockManager)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	ownerID := generateOwnerID()

	// SET NX is the atomic compare-and-set, nil means the key exists
	args := []any{key, ownerID, "NX"}
	if ttl > 0 {
		args = append(args, "PX", max(ttl.Milliseconds(), 1))
	}
	v, err := lm.exec.Do(ctx, "SET", args...)
	if err != nil {
		return false, "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if v == nil {
		return false, "", nil
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) AcquireWait(ctx context.Context, key string, ttl, maxWait time.Duration) (bool, string, error) {
	b := retry.NewFibonacci(lm.backoff)
	b = retry.WithCappedDuration(500*time.Millisecond, b)
	b = retry.WithMaxDuration(maxWait, b)

	var ownerID string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		ok, id, err := lm.AcquireLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		ownerID = id
		return nil
	})
	switch {
	case err == nil:
		return true, ownerID, nil
	case errors.Is(err, errLockHeld):
		log.Debugf("gave up waiting for lock %s after %s", key, maxWait)
		return false, "", nil
	default:
		return false, "", err
	}
}

func (lm *lockMgrImpl) ReleaseLock(ctx context.Context, key string, ownerID string) (bool, error) {
	res, err := lm.exec.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		if _, err := c.Do(ctx, "EXISTS", key); err != nil {
			return err
		}
		_, err := c.Do(ctx, "DELIFEQ", key, ownerID)
		return err
	})
	if err == nil {
		err = res.Err()
	}
	if unknownCommand(err) {
		return lm.releaseScript(ctx, key, ownerID)
	}
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}

	// a lock that does not exist counts as released
	if exists, _ := res.At(0).Value.(int64); exists == 0 {
		return true, nil
	}
	deleted, _ := res.At(1).Value.(int64)
	return deleted == 1, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// releaseScript releases a lock on redis, where the compare-and-delete runs as a script
func (lm *lockMgrImpl) releaseScript(ctx context.Context, key, ownerID string) (bool, error) {
	exists, err := lm.exec.Do(ctx, "EXISTS", key)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	if n, _ := exists.(int64); n == 0 {
		return true, nil
	}
	v, err := lm.exec.Do(ctx, "EVAL", compareAndDelete, 1, key, ownerID)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	deleted, _ := v.(int64)
	return deleted == 1, nil
}

// unknownCommand reports whether err means the backend does not know DELIFEQ
func unknownCommand(err error) bool {
	if err == nil {
		return false
	}
	if store.CodeOf(err) == store.RetCUnsupportedOperation {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown command")
}
