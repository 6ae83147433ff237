package memstore

import (
	"github.com/ValentinKolb/rkv/lib/store"
)

// Kind is the kind of value stored under a key
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindList
	KindSet
	KindHash
	KindZSet
)

// String returns the name reported by the TYPE command
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

// entry is a single value in the keyspace. Only the field matching Kind is used.
// The fields are exported for gob snapshots.
type entry struct {
	Kind     Kind
	Str      string
	List     []string
	Set      map[string]bool
	Hash     map[string]string
	ZSet     map[string]float64
	ExpireAt int64 // unix milliseconds, 0 = no expiration
}

func newEntry(kind Kind) *entry {
	e := &entry{Kind: kind}
	switch kind {
	case KindSet:
		e.Set = make(map[string]bool)
	case KindHash:
		e.Hash = make(map[string]string)
	case KindZSet:
		e.ZSet = make(map[string]float64)
	}
	return e
}

func (e *entry) expired(now int64) bool {
	return e.ExpireAt > 0 && e.ExpireAt <= now
}

// empty reports whether a container value has no elements left
// (redis removes such keys)
func (e *entry) empty() bool {
	switch e.Kind {
	case KindList:
		return len(e.List) == 0
	case KindSet:
		return len(e.Set) == 0
	case KindHash:
		return len(e.Hash) == 0
	case KindZSet:
		return len(e.ZSet) == 0
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Transaction view on the keyspace
// --------------------------------------------------------------------------

// txn gives command implementations access to one logical database.
// The caller holds the locks of all shards the command touches.
type txn struct {
	e        *Engine
	db       int
	now      int64
	readOnly bool
}

// keys returns the keyspace of the db in the shard of key
func (t *txn) keys(key string, create bool) map[string]*entry {
	s := t.e.shards[t.e.shardIndex(key)]
	m, ok := s.dbs[t.db]
	if !ok && create {
		m = make(map[string]*entry)
		s.dbs[t.db] = m
	}
	return m
}

// get returns the live entry of a key or nil
func (t *txn) get(key string) *entry {
	m := t.keys(key, false)
	if m == nil {
		return nil
	}
	ent, ok := m[key]
	if !ok {
		return nil
	}
	if ent.expired(t.now) {
		if !t.readOnly {
			delete(m, key)
		}
		return nil
	}
	return ent
}

// getKind returns the entry of a key if it has the given kind.
// A missing key returns nil without error.
func (t *txn) getKind(key string, kind Kind) (*entry, error) {
	ent := t.get(key)
	if ent == nil {
		return nil, nil
	}
	if ent.Kind != kind {
		return nil, errWrongType
	}
	return ent, nil
}

// getOrCreate returns the entry of a key, creating an empty one of the given kind
func (t *txn) getOrCreate(key string, kind Kind) (*entry, error) {
	ent, err := t.getKind(key, kind)
	if err != nil || ent != nil {
		return ent, err
	}
	ent = newEntry(kind)
	t.keys(key, true)[key] = ent
	return ent, nil
}

// put stores an entry, replacing any existing value
func (t *txn) put(key string, ent *entry) {
	t.keys(key, true)[key] = ent
}

// del removes a key and reports whether a live key was removed
func (t *txn) del(key string) bool {
	if t.get(key) == nil {
		return false
	}
	delete(t.keys(key, false), key)
	return true
}

// cleanup removes a container key that became empty
func (t *txn) cleanup(key string, ent *entry) {
	if ent != nil && ent.empty() {
		delete(t.keys(key, false), key)
	}
}

// each calls fn for every live key of the db (all shards must be locked)
func (t *txn) each(fn func(key string, ent *entry)) {
	for _, s := range t.e.shards {
		for k, ent := range s.dbs[t.db] {
			if !ent.expired(t.now) {
				fn(k, ent)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	errWrongType = store.NewError(store.RetCWrongType, "WRONGTYPE Operation against a key holding the wrong kind of value")
	errNotInt    = store.NewError(store.RetCNotInteger, "ERR value is not an integer or out of range")
	errNotFloat  = store.NewError(store.RetCInvalidOperation, "ERR value is not a valid float")
	errSyntax    = store.NewError(store.RetCInvalidOperation, "ERR syntax error")
	errNoSuchKey = store.NewError(store.RetCInvalidOperation, "ERR no such key")
	errExpire    = store.NewError(store.RetCInvalidOperation, "ERR invalid expire time")
)
