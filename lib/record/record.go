package record

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/rkv/lib/conn"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("conn")

// Record maps a group of named fields to a hash stored under its key and owns
// further data types stored under "<key>:<name>". The owned types resolve
// their connections through the record, so they take part in the atomic and
// batch scopes opened on it.
type Record struct {
	*resource
	opts options

	mu     sync.Mutex
	fields map[string]string
	owned  []string // keys of the owned data types
}

// New creates a record stored under key on target
//
// Usage:
//
//	user := record.New("user:1", conn.MustTarget("mem://app", 0))
//	user.Set("name", "alice")
//	visits := user.Counter("visits")
//
//	res, err := user.RunAtomic(ctx, func(ctx context.Context, _ store.Commander) error {
//		if err := user.Save(ctx); err != nil {
//			return err
//		}
//		_, err := visits.Incr(ctx, 1)
//		return err
//	})
func New(key string, target conn.Target, opts ...Option) *Record {
	o := newOptions(opts)
	r := &Record{
		resource: newResource(key, o),
		opts:     o,
		fields:   map[string]string{},
	}

	handlers := []conn.IHandler{conn.NewReentrantAtomicHandler(), conn.NewCachedAdHocHandler()}
	if o.provider != nil {
		handlers = append(handlers, conn.NewProviderHandler(o.provider))
	}
	handlers = append(handlers,
		conn.NewStandaloneHandler(r.resource, o.factory),
		conn.NewCreateHandler(o.factory),
	)
	r.Access = conn.NewAccess(conn.NewChain(handlers...), target)
	return r
}

// Set sets a field locally, Save writes it
func (r *Record) Set(field string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[field] = store.Arg(value)
}

// Get returns a field loaded with Load or set with Set
func (r *Record) Get(field string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[field]
	return v, ok
}

// Fields returns a copy of all local fields
func (r *Record) Fields() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Save writes all fields in one atomic unit. With WithTTL the record and all
// owned data types expire together.
func (r *Record) Save(ctx context.Context) error {
	fields := r.Fields()
	r.mu.Lock()
	owned := append([]string(nil), r.owned...)
	r.mu.Unlock()

	res, err := r.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		if len(fields) > 0 {
			names := make([]string, 0, len(fields))
			for f := range fields {
				names = append(names, f)
			}
			sort.Strings(names)

			args := make([]any, 0, 1+2*len(names))
			args = append(args, r.key)
			for _, f := range names {
				args = append(args, f, fields[f])
			}
			if _, err := c.Do(ctx, "HSET", args...); err != nil {
				return err
			}
		}
		if r.opts.ttl > 0 {
			for _, key := range append([]string{r.key}, owned...) {
				if _, err := c.Do(ctx, "PEXPIRE", key, r.opts.ttl.Milliseconds()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save record %s: %w", r.key, err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("save record %s: %w", r.key, err)
	}
	return nil
}

// Load replaces the local fields with the stored ones. It reports whether the record exists.
func (r *Record) Load(ctx context.Context) (bool, error) {
	v, err := r.Do(ctx, "HGETALL", r.key)
	if err != nil {
		return false, fmt.Errorf("load record %s: %w", r.key, err)
	}
	fields := asMap(v)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = fields
	return len(fields) > 0, nil
}

// Delete removes the record and all owned data types in one atomic unit
func (r *Record) Delete(ctx context.Context) error {
	r.mu.Lock()
	keys := append([]string{r.key}, r.owned...)
	r.mu.Unlock()

	res, err := r.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		_, err := c.Do(ctx, "DEL", args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", r.key, err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("delete record %s: %w", r.key, err)
	}
	return nil
}

// TTL returns the remaining time to live of the record hash (-1 without
// expiration, -2 if it does not exist)
func (r *Record) TTL(ctx context.Context) (time.Duration, error) {
	v, err := r.Do(ctx, "PTTL", r.key)
	if err != nil {
		return 0, err
	}
	ms := asInt(v)
	if ms < 0 {
		return time.Duration(ms), nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// --------------------------------------------------------------------------
// Owned data types
// --------------------------------------------------------------------------

// own creates the resource of an owned data type
func (r *Record) own(name string) *resource {
	key := r.key + ":" + name
	r.mu.Lock()
	if !slices.Contains(r.owned, key) {
		r.owned = append(r.owned, key)
	}
	r.mu.Unlock()

	res := newResource(key, options{})
	res.Access = conn.NewAccess(ownedChain(r), r.Target())
	log.Debugf("record %s owns %s", r.key, key)
	return res
}

// List returns the list "<key>:<name>" owned by the record
func (r *Record) List(name string) *ListKey { return &ListKey{r.own(name)} }

// Hash returns the hash "<key>:<name>" owned by the record
func (r *Record) Hash(name string) *HashKey { return &HashKey{r.own(name)} }

// SetKey returns the set "<key>:<name>" owned by the record
func (r *Record) SetKey(name string) *SetKey { return &SetKey{r.own(name)} }

// SortedSet returns the sorted set "<key>:<name>" owned by the record
func (r *Record) SortedSet(name string) *SortedSetKey { return &SortedSetKey{r.own(name)} }

// Counter returns the counter "<key>:<name>" owned by the record
func (r *Record) Counter(name string) *Counter { return &Counter{r.own(name)} }
