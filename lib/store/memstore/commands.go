package memstore

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/rkv/lib/store"
)

// --------------------------------------------------------------------------
// Command Table
// --------------------------------------------------------------------------

// keyMode tells the engine which shards a command has to lock
type keyMode uint8

const (
	keysNone   keyMode = iota // no key (PING, ECHO)
	keysFirst                 // the first argument is the only key
	keysAll                   // every argument is a key (DEL, EXISTS)
	keysGlobal                // the whole logical database (KEYS, FLUSHDB)
)

// commandDef describes a single command of the engine
type commandDef struct {
	name     string
	minArgs  int
	maxArgs  int // -1 = unlimited
	keys     keyMode
	readOnly bool
	fn       func(t *txn, args []string) (any, error)
}

var commandTable = map[string]*commandDef{}

func init() {
	for _, def := range []*commandDef{
		// Connection
		{"PING", 0, 1, keysNone, true, cmdPing},
		{"ECHO", 1, 1, keysNone, true, cmdEcho},

		// Keyspace
		{"DEL", 1, -1, keysAll, false, cmdDel},
		{"EXISTS", 1, -1, keysAll, true, cmdExists},
		{"EXPIRE", 2, 2, keysFirst, false, cmdExpire},
		{"PEXPIRE", 2, 2, keysFirst, false, cmdPExpire},
		{"TTL", 1, 1, keysFirst, true, cmdTTL},
		{"PTTL", 1, 1, keysFirst, true, cmdPTTL},
		{"PERSIST", 1, 1, keysFirst, false, cmdPersist},
		{"TYPE", 1, 1, keysFirst, true, cmdType},
		{"KEYS", 1, 1, keysGlobal, true, cmdKeys},
		{"DBSIZE", 0, 0, keysGlobal, true, cmdDBSize},
		{"FLUSHDB", 0, 0, keysGlobal, false, cmdFlushDB},
		{"DELIFEQ", 2, 2, keysFirst, false, cmdDelIfEq},

		// Strings
		{"GET", 1, 1, keysFirst, true, cmdGet},
		{"SET", 2, -1, keysFirst, false, cmdSet},
		{"SETNX", 2, 2, keysFirst, false, cmdSetNX},
		{"GETSET", 2, 2, keysFirst, false, cmdGetSet},
		{"INCR", 1, 1, keysFirst, false, cmdIncr},
		{"INCRBY", 2, 2, keysFirst, false, cmdIncrBy},
		{"DECR", 1, 1, keysFirst, false, cmdDecr},
		{"DECRBY", 2, 2, keysFirst, false, cmdDecrBy},
		{"APPEND", 2, 2, keysFirst, false, cmdAppend},
		{"STRLEN", 1, 1, keysFirst, true, cmdStrlen},

		// Hashes
		{"HSET", 3, -1, keysFirst, false, cmdHSet},
		{"HGET", 2, 2, keysFirst, true, cmdHGet},
		{"HDEL", 2, -1, keysFirst, false, cmdHDel},
		{"HEXISTS", 2, 2, keysFirst, true, cmdHExists},
		{"HGETALL", 1, 1, keysFirst, true, cmdHGetAll},
		{"HKEYS", 1, 1, keysFirst, true, cmdHKeys},
		{"HLEN", 1, 1, keysFirst, true, cmdHLen},
		{"HINCRBY", 3, 3, keysFirst, false, cmdHIncrBy},

		// Lists
		{"LPUSH", 2, -1, keysFirst, false, cmdLPush},
		{"RPUSH", 2, -1, keysFirst, false, cmdRPush},
		{"LPOP", 1, 1, keysFirst, false, cmdLPop},
		{"RPOP", 1, 1, keysFirst, false, cmdRPop},
		{"LRANGE", 3, 3, keysFirst, true, cmdLRange},
		{"LLEN", 1, 1, keysFirst, true, cmdLLen},
		{"LREM", 3, 3, keysFirst, false, cmdLRem},

		// Sets
		{"SADD", 2, -1, keysFirst, false, cmdSAdd},
		{"SREM", 2, -1, keysFirst, false, cmdSRem},
		{"SMEMBERS", 1, 1, keysFirst, true, cmdSMembers},
		{"SISMEMBER", 2, 2, keysFirst, true, cmdSIsMember},
		{"SCARD", 1, 1, keysFirst, true, cmdSCard},

		// Sorted sets
		{"ZADD", 3, -1, keysFirst, false, cmdZAdd},
		{"ZREM", 2, -1, keysFirst, false, cmdZRem},
		{"ZSCORE", 2, 2, keysFirst, true, cmdZScore},
		{"ZRANGE", 3, 4, keysFirst, true, cmdZRange},
		{"ZCARD", 1, 1, keysFirst, true, cmdZCard},
		{"ZINCRBY", 3, 3, keysFirst, false, cmdZIncrBy},
	} {
		commandTable[def.name] = def
	}
}

// lookup returns the def of a command and validates its arity
func lookup(cmd store.Command) (*commandDef, *store.Error) {
	name := strings.ToUpper(cmd.Name)
	def, ok := commandTable[name]
	if !ok {
		return nil, store.Errorf(store.RetCUnsupportedOperation, "ERR unknown command '%s'", strings.ToLower(cmd.Name))
	}
	if len(cmd.Args) < def.minArgs || (def.maxArgs >= 0 && len(cmd.Args) > def.maxArgs) {
		return nil, store.Errorf(store.RetCInvalidOperation, "ERR wrong number of arguments for '%s' command", strings.ToLower(name))
	}
	return def, nil
}

// IsReadOnly reports whether a command never modifies the keyspace.
// Unknown commands are not read-only.
func IsReadOnly(name string) bool {
	def, ok := commandTable[strings.ToUpper(name)]
	return ok && def.readOnly
}

// CommandNames returns the names of all supported commands in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Connection and keyspace commands
// --------------------------------------------------------------------------

func cmdPing(_ *txn, args []string) (any, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return "PONG", nil
}

func cmdEcho(_ *txn, args []string) (any, error) {
	return args[0], nil
}

func cmdDel(t *txn, args []string) (any, error) {
	var n int64
	for _, k := range args {
		if t.del(k) {
			n++
		}
	}
	return n, nil
}

func cmdExists(t *txn, args []string) (any, error) {
	var n int64
	for _, k := range args {
		if t.get(k) != nil {
			n++
		}
	}
	return n, nil
}

func cmdExpire(t *txn, args []string) (any, error) {
	secs, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	if secs > math.MaxInt64/1000 || secs < math.MinInt64/1000 {
		return nil, errExpire
	}
	return expireIn(t, args[0], secs*1000), nil
}

func cmdPExpire(t *txn, args []string) (any, error) {
	ms, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return expireIn(t, args[0], ms), nil
}

// expireIn sets the expiration of a key, a non-positive ttl deletes the key
func expireIn(t *txn, key string, ms int64) int64 {
	ent := t.get(key)
	if ent == nil {
		return 0
	}
	if ms <= 0 {
		t.del(key)
		return 1
	}
	ent.ExpireAt = t.now + ms
	return 1
}

func cmdTTL(t *txn, args []string) (any, error) {
	ms := pttl(t, args[0])
	if ms < 0 {
		return ms, nil
	}
	return (ms + 500) / 1000, nil
}

func cmdPTTL(t *txn, args []string) (any, error) {
	return pttl(t, args[0]), nil
}

// pttl returns the remaining time to live in ms, -2 for missing keys and
// -1 for keys without expiration
func pttl(t *txn, key string) int64 {
	ent := t.get(key)
	if ent == nil {
		return -2
	}
	if ent.ExpireAt == 0 {
		return -1
	}
	return ent.ExpireAt - t.now
}

func cmdPersist(t *txn, args []string) (any, error) {
	ent := t.get(args[0])
	if ent == nil || ent.ExpireAt == 0 {
		return int64(0), nil
	}
	ent.ExpireAt = 0
	return int64(1), nil
}

func cmdType(t *txn, args []string) (any, error) {
	ent := t.get(args[0])
	if ent == nil {
		return KindNone.String(), nil
	}
	return ent.Kind.String(), nil
}

func cmdKeys(t *txn, args []string) (any, error) {
	var keys []string
	t.each(func(key string, _ *entry) {
		if globMatch(args[0], key) {
			keys = append(keys, key)
		}
	})
	sort.Strings(keys)
	return toAny(keys), nil
}

func cmdDBSize(t *txn, _ []string) (any, error) {
	var n int64
	t.each(func(string, *entry) { n++ })
	return n, nil
}

func cmdFlushDB(t *txn, _ []string) (any, error) {
	for _, s := range t.e.shards {
		delete(s.dbs, t.db)
	}
	return "OK", nil
}

// cmdDelIfEq deletes a string key only if it holds the given value
func cmdDelIfEq(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindString)
	if err != nil {
		return nil, err
	}
	if ent == nil || ent.Str != args[1] {
		return int64(0), nil
	}
	t.del(args[0])
	return int64(1), nil
}

// --------------------------------------------------------------------------
// String commands
// --------------------------------------------------------------------------

func cmdGet(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindString)
	if err != nil || ent == nil {
		return nil, err
	}
	return ent.Str, nil
}

func cmdSet(t *txn, args []string) (any, error) {
	key, value := args[0], args[1]

	// Parse options
	var expireAt int64
	var nx, xx, keepTTL bool
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "KEEPTTL":
			keepTTL = true
		case "EX", "PX":
			if i+1 >= len(args) || expireAt != 0 {
				return nil, errSyntax
			}
			n, err := parseInt(args[i+1])
			if err != nil {
				return nil, err
			}
			if n <= 0 {
				return nil, errExpire
			}
			if strings.ToUpper(args[i]) == "EX" {
				n *= 1000
			}
			expireAt = t.now + n
			i++
		default:
			return nil, errSyntax
		}
	}
	if (nx && xx) || (keepTTL && expireAt != 0) {
		return nil, errSyntax
	}

	// Check conditions
	existing := t.get(key)
	if (nx && existing != nil) || (xx && existing == nil) {
		return nil, nil
	}

	ent := &entry{Kind: KindString, Str: value, ExpireAt: expireAt}
	if keepTTL && existing != nil {
		ent.ExpireAt = existing.ExpireAt
	}
	t.put(key, ent)
	return "OK", nil
}

func cmdSetNX(t *txn, args []string) (any, error) {
	if t.get(args[0]) != nil {
		return int64(0), nil
	}
	t.put(args[0], &entry{Kind: KindString, Str: args[1]})
	return int64(1), nil
}

func cmdGetSet(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindString)
	if err != nil {
		return nil, err
	}
	t.put(args[0], &entry{Kind: KindString, Str: args[1]})
	if ent == nil {
		return nil, nil
	}
	return ent.Str, nil
}

func cmdIncr(t *txn, args []string) (any, error) {
	return incrBy(t, args[0], 1)
}

func cmdIncrBy(t *txn, args []string) (any, error) {
	delta, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return incrBy(t, args[0], delta)
}

func cmdDecr(t *txn, args []string) (any, error) {
	return incrBy(t, args[0], -1)
}

func cmdDecrBy(t *txn, args []string) (any, error) {
	delta, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	if delta == math.MinInt64 {
		return nil, errOverflow
	}
	return incrBy(t, args[0], -delta)
}

// incrBy adds delta to the integer stored at key (missing keys count as 0)
func incrBy(t *txn, key string, delta int64) (any, error) {
	ent, err := t.getKind(key, KindString)
	if err != nil {
		return nil, err
	}
	var cur int64
	if ent != nil {
		if cur, err = parseInt(ent.Str); err != nil {
			return nil, err
		}
	}
	next, err := addInt(cur, delta)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		t.put(key, &entry{Kind: KindString, Str: strconv.FormatInt(next, 10)})
	} else {
		ent.Str = strconv.FormatInt(next, 10)
	}
	return next, nil
}

func cmdAppend(t *txn, args []string) (any, error) {
	ent, err := t.getOrCreate(args[0], KindString)
	if err != nil {
		return nil, err
	}
	ent.Str += args[1]
	return int64(len(ent.Str)), nil
}

func cmdStrlen(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindString)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return int64(len(ent.Str)), nil
}

// --------------------------------------------------------------------------
// Hash commands
// --------------------------------------------------------------------------

func cmdHSet(t *txn, args []string) (any, error) {
	pairs := args[1:]
	if len(pairs)%2 != 0 {
		return nil, store.NewError(store.RetCInvalidOperation, "ERR wrong number of arguments for 'hset' command")
	}
	ent, err := t.getOrCreate(args[0], KindHash)
	if err != nil {
		return nil, err
	}
	var added int64
	for i := 0; i < len(pairs); i += 2 {
		if _, ok := ent.Hash[pairs[i]]; !ok {
			added++
		}
		ent.Hash[pairs[i]] = pairs[i+1]
	}
	return added, nil
}

func cmdHGet(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil || ent == nil {
		return nil, err
	}
	if v, ok := ent.Hash[args[1]]; ok {
		return v, nil
	}
	return nil, nil
}

func cmdHDel(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil || ent == nil {
		return int64(0), err
	}
	var n int64
	for _, f := range args[1:] {
		if _, ok := ent.Hash[f]; ok {
			delete(ent.Hash, f)
			n++
		}
	}
	t.cleanup(args[0], ent)
	return n, nil
}

func cmdHExists(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return boolInt(hasField(ent.Hash, args[1])), nil
}

func cmdHGetAll(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return []any{}, nil
	}
	fields := sortedKeys(ent.Hash)
	out := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, f, ent.Hash[f])
	}
	return out, nil
}

func cmdHKeys(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return []any{}, nil
	}
	return toAny(sortedKeys(ent.Hash)), nil
}

func cmdHLen(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindHash)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return int64(len(ent.Hash)), nil
}

func cmdHIncrBy(t *txn, args []string) (any, error) {
	delta, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	ent, err := t.getOrCreate(args[0], KindHash)
	if err != nil {
		return nil, err
	}
	var cur int64
	if v, ok := ent.Hash[args[1]]; ok {
		if cur, err = parseInt(v); err != nil {
			return nil, store.NewError(store.RetCNotInteger, "ERR hash value is not an integer")
		}
	}
	next, err := addInt(cur, delta)
	if err != nil {
		return nil, err
	}
	ent.Hash[args[1]] = strconv.FormatInt(next, 10)
	return next, nil
}

// --------------------------------------------------------------------------
// List commands
// --------------------------------------------------------------------------

func cmdLPush(t *txn, args []string) (any, error) {
	ent, err := t.getOrCreate(args[0], KindList)
	if err != nil {
		return nil, err
	}
	// LPUSH a b c results in c b a
	values := args[1:]
	list := make([]string, 0, len(values)+len(ent.List))
	for i := len(values) - 1; i >= 0; i-- {
		list = append(list, values[i])
	}
	ent.List = append(list, ent.List...)
	return int64(len(ent.List)), nil
}

func cmdRPush(t *txn, args []string) (any, error) {
	ent, err := t.getOrCreate(args[0], KindList)
	if err != nil {
		return nil, err
	}
	ent.List = append(ent.List, args[1:]...)
	return int64(len(ent.List)), nil
}

func cmdLPop(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindList)
	if err != nil || ent == nil {
		return nil, err
	}
	v := ent.List[0]
	ent.List = ent.List[1:]
	t.cleanup(args[0], ent)
	return v, nil
}

func cmdRPop(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindList)
	if err != nil || ent == nil {
		return nil, err
	}
	v := ent.List[len(ent.List)-1]
	ent.List = ent.List[:len(ent.List)-1]
	t.cleanup(args[0], ent)
	return v, nil
}

func cmdLRange(t *txn, args []string) (any, error) {
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	ent, err := t.getKind(args[0], KindList)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return []any{}, nil
	}
	from, to, ok := normRange(start, stop, int64(len(ent.List)))
	if !ok {
		return []any{}, nil
	}
	return toAny(ent.List[from : to+1]), nil
}

func cmdLLen(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindList)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return int64(len(ent.List)), nil
}

func cmdLRem(t *txn, args []string) (any, error) {
	count, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	ent, err := t.getKind(args[0], KindList)
	if err != nil || ent == nil {
		return int64(0), err
	}

	value := args[2]
	limit := count
	if limit < 0 {
		limit = -limit
	}

	// Mark the elements to remove, from the head (count >= 0) or the tail (count < 0)
	remove := make([]bool, len(ent.List))
	var removed int64
	for i := 0; i < len(ent.List); i++ {
		idx := i
		if count < 0 {
			idx = len(ent.List) - 1 - i
		}
		if ent.List[idx] == value && (limit == 0 || removed < limit) {
			remove[idx] = true
			removed++
		}
	}

	kept := ent.List[:0]
	for i, v := range ent.List {
		if !remove[i] {
			kept = append(kept, v)
		}
	}
	ent.List = kept
	t.cleanup(args[0], ent)
	return removed, nil
}

// --------------------------------------------------------------------------
// Set commands
// --------------------------------------------------------------------------

func cmdSAdd(t *txn, args []string) (any, error) {
	ent, err := t.getOrCreate(args[0], KindSet)
	if err != nil {
		return nil, err
	}
	var added int64
	for _, m := range args[1:] {
		if !ent.Set[m] {
			ent.Set[m] = true
			added++
		}
	}
	return added, nil
}

func cmdSRem(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindSet)
	if err != nil || ent == nil {
		return int64(0), err
	}
	var removed int64
	for _, m := range args[1:] {
		if ent.Set[m] {
			delete(ent.Set, m)
			removed++
		}
	}
	t.cleanup(args[0], ent)
	return removed, nil
}

func cmdSMembers(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindSet)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return []any{}, nil
	}
	return toAny(sortedKeys(ent.Set)), nil
}

func cmdSIsMember(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindSet)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return boolInt(ent.Set[args[1]]), nil
}

func cmdSCard(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindSet)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return int64(len(ent.Set)), nil
}

// --------------------------------------------------------------------------
// Sorted set commands
// --------------------------------------------------------------------------

func cmdZAdd(t *txn, args []string) (any, error) {
	pairs := args[1:]
	if len(pairs)%2 != 0 {
		return nil, errSyntax
	}

	// Parse all scores before modifying anything
	scores := make([]float64, len(pairs)/2)
	for i := range scores {
		s, err := parseFloat(pairs[2*i])
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}

	ent, err := t.getOrCreate(args[0], KindZSet)
	if err != nil {
		return nil, err
	}
	var added int64
	for i, score := range scores {
		member := pairs[2*i+1]
		if _, ok := ent.ZSet[member]; !ok {
			added++
		}
		ent.ZSet[member] = score
	}
	return added, nil
}

func cmdZRem(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindZSet)
	if err != nil || ent == nil {
		return int64(0), err
	}
	var removed int64
	for _, m := range args[1:] {
		if _, ok := ent.ZSet[m]; ok {
			delete(ent.ZSet, m)
			removed++
		}
	}
	t.cleanup(args[0], ent)
	return removed, nil
}

func cmdZScore(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindZSet)
	if err != nil || ent == nil {
		return nil, err
	}
	if s, ok := ent.ZSet[args[1]]; ok {
		return formatFloat(s), nil
	}
	return nil, nil
}

func cmdZRange(t *txn, args []string) (any, error) {
	withScores := false
	if len(args) == 4 {
		if strings.ToUpper(args[3]) != "WITHSCORES" {
			return nil, errSyntax
		}
		withScores = true
	}
	start, stop, err := parseRange(args[1], args[2])
	if err != nil {
		return nil, err
	}
	ent, err := t.getKind(args[0], KindZSet)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return []any{}, nil
	}

	// Order by score, ties by member
	members := sortedKeys(ent.ZSet)
	sort.SliceStable(members, func(i, j int) bool {
		return ent.ZSet[members[i]] < ent.ZSet[members[j]]
	})

	from, to, ok := normRange(start, stop, int64(len(members)))
	if !ok {
		return []any{}, nil
	}
	out := make([]any, 0, 2*(to-from+1))
	for _, m := range members[from : to+1] {
		out = append(out, m)
		if withScores {
			out = append(out, formatFloat(ent.ZSet[m]))
		}
	}
	return out, nil
}

func cmdZCard(t *txn, args []string) (any, error) {
	ent, err := t.getKind(args[0], KindZSet)
	if err != nil || ent == nil {
		return int64(0), err
	}
	return int64(len(ent.ZSet)), nil
}

func cmdZIncrBy(t *txn, args []string) (any, error) {
	delta, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	ent, err := t.getOrCreate(args[0], KindZSet)
	if err != nil {
		return nil, err
	}
	score := ent.ZSet[args[2]] + delta
	if math.IsNaN(score) {
		return nil, store.NewError(store.RetCInvalidOperation, "ERR resulting score is not a number (NaN)")
	}
	ent.ZSet[args[2]] = score
	return formatFloat(score), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

var errOverflow = store.NewError(store.RetCInvalidOperation, "ERR increment or decrement would overflow")

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errNotInt
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, errNotFloat
	}
	return f, nil
}

func parseRange(start, stop string) (int64, int64, error) {
	from, err := parseInt(start)
	if err != nil {
		return 0, 0, err
	}
	to, err := parseInt(stop)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// normRange resolves negative indices and clamps the range to [0, n)
func normRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

func addInt(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errOverflow
	}
	return a + b, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func hasField(m map[string]string, f string) bool {
	_, ok := m[f]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
