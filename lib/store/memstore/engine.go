package memstore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/cespare/xxhash/v2"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

const (
	defaultShards     = 16
	defaultGCInterval = time.Second
)

// Config configures an Engine. A nil config uses the defaults.
type Config struct {
	// Shards is the number of independently locked keyspace partitions (default 16).
	Shards int
	// GCInterval is the interval of the expired key sweep. Zero uses the default,
	// a negative value disables the sweep (expired keys are still removed lazily).
	GCInterval time.Duration
	// Clock returns the current time, used for key expiration (default time.Now).
	Clock func() time.Time
}

// Engine is an in-process, redis-like key-value engine with numbered logical
// databases. Keys are partitioned into shards by their xxhash, each shard is
// protected by its own mutex. Single commands lock only the shards of the keys
// they touch, atomic command lists lock every shard for their whole execution
// so they are applied as one indivisible unit.
type Engine struct {
	shards []*shard
	clock  func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	commands atomic.Uint64 // number of executed commands
}

// shard is one partition of the keyspace of all logical databases
type shard struct {
	mu  sync.Mutex
	dbs map[int]map[string]*entry
}

// NewEngine creates a new engine and starts the expired key sweep.
func NewEngine(config *Config) *Engine {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = defaultGCInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		shards: make([]*shard, cfg.Shards),
		clock:  cfg.Clock,
		stopCh: make(chan struct{}),
	}
	for i := range e.shards {
		e.shards[i] = &shard{dbs: make(map[int]map[string]*entry)}
	}

	// Start the background sweep
	if cfg.GCInterval > 0 {
		e.wg.Add(1)
		go e.gcLoop(cfg.GCInterval)
	}
	return e
}

// --------------------------------------------------------------------------
// Public execution API
// --------------------------------------------------------------------------

// Exec executes a single command against a logical database.
func (e *Engine) Exec(db int, cmd store.Command) (any, error) {
	return e.exec(db, e.clock(), cmd, false)
}

// Query executes a read-only command. It never modifies the engine, expired
// keys are reported as missing but not removed.
func (e *Engine) Query(db int, cmd store.Command) (any, error) {
	if !IsReadOnly(cmd.Name) {
		return nil, store.Errorf(store.RetCInvalidOperation, "ERR command '%s' is not read-only", cmd.Name)
	}
	return e.exec(db, e.clock(), cmd, true)
}

// ExecAtomic applies all commands as one unit. If any command is unknown or
// has a wrong number of arguments nothing is applied and an error is returned.
// Runtime errors of single commands (e.g. wrong type) are returned as replies
// and do not affect the other commands.
func (e *Engine) ExecAtomic(db int, cmds []store.Command) ([]store.Reply, error) {
	return e.Apply(e.clock(), db, true, cmds)
}

// ExecBatch executes all commands independently and returns one reply per command.
func (e *Engine) ExecBatch(db int, cmds []store.Command) []store.Reply {
	replies, _ := e.Apply(e.clock(), db, false, cmds)
	return replies
}

// Apply executes a command list at the given point in time. It is used by
// the replicated state machine, which must not depend on the local clock.
func (e *Engine) Apply(now time.Time, db int, atomicExec bool, cmds []store.Command) ([]store.Reply, error) {
	if !atomicExec {
		replies := make([]store.Reply, len(cmds))
		for i, cmd := range cmds {
			v, err := e.exec(db, now, cmd, false)
			replies[i] = store.Reply{Value: v, Err: err}
		}
		return replies, nil
	}

	// Validate all commands before anything is applied
	defs := make([]*commandDef, len(cmds))
	for i, cmd := range cmds {
		def, err := lookup(cmd)
		if err != nil {
			return nil, store.Errorf(store.RetCInvalidOperation, "EXECABORT Transaction discarded because of previous errors: %s", err.Msg)
		}
		defs[i] = def
	}

	// Lock the whole keyspace
	e.lockAll()
	defer e.unlockAll()

	t := &txn{e: e, db: db, now: now.UnixMilli()}
	replies := make([]store.Reply, len(cmds))
	for i, cmd := range cmds {
		v, err := defs[i].fn(t, cmd.Args)
		replies[i] = store.Reply{Value: v, Err: err}
	}
	e.commands.Add(uint64(len(cmds)))
	return replies, nil
}

// Commands returns the number of commands executed by the engine.
func (e *Engine) Commands() uint64 {
	return e.commands.Load()
}

// Close stops the background sweep. The data stays readable.
func (e *Engine) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		close(e.stopCh)
		e.wg.Wait()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// exec looks up the command, locks the shards it touches and runs it
func (e *Engine) exec(db int, now time.Time, cmd store.Command, readOnly bool) (any, error) {
	def, err := lookup(cmd)
	if err != nil {
		return nil, err
	}

	// Lock the shards touched by the command (in index order)
	idx := e.shardsFor(def, cmd.Args)
	for _, i := range idx {
		e.shards[i].mu.Lock()
	}
	defer func() {
		for _, i := range idx {
			e.shards[i].mu.Unlock()
		}
	}()

	e.commands.Add(1)
	t := &txn{e: e, db: db, now: now.UnixMilli(), readOnly: readOnly}
	return def.fn(t, cmd.Args)
}

// shardIndex returns the shard a key belongs to
func (e *Engine) shardIndex(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(e.shards)))
}

// shardsFor returns the sorted, unique shard indices a command must lock
func (e *Engine) shardsFor(def *commandDef, args []string) []int {
	switch def.keys {
	case keysNone:
		return nil
	case keysFirst:
		return []int{e.shardIndex(args[0])}
	case keysAll:
		seen := make(map[int]struct{}, len(args))
		idx := make([]int, 0, len(args))
		for _, k := range args {
			i := e.shardIndex(k)
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				idx = append(idx, i)
			}
		}
		sort.Ints(idx)
		return idx
	default: // keysGlobal
		idx := make([]int, len(e.shards))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
}

func (e *Engine) lockAll() {
	for _, s := range e.shards {
		s.mu.Lock()
	}
}

func (e *Engine) unlockAll() {
	for i := len(e.shards) - 1; i >= 0; i-- {
		e.shards[i].mu.Unlock()
	}
}

// gcLoop periodically removes expired keys from all shards
func (e *Engine) gcLoop(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			removed := e.sweep(e.clock().UnixMilli())
			if removed > 0 {
				log.Debugf("memstore gc removed %d expired keys in %s", removed, time.Since(start))
			}
		}
	}
}

// sweep removes all keys expired at now and returns how many were removed
func (e *Engine) sweep(now int64) int {
	removed := 0
	for _, s := range e.shards {
		s.mu.Lock()
		for db, keys := range s.dbs {
			for k, ent := range keys {
				if ent.expired(now) {
					delete(keys, k)
					removed++
				}
			}
			if len(keys) == 0 {
				delete(s.dbs, db)
			}
		}
		s.mu.Unlock()
	}
	return removed
}
