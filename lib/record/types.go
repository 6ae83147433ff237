package record

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/conn"
)

// Inside an atomic or batch scope the commands are only queued: the typed
// results of the methods below are zero values then, the real replies are
// returned by the scope.

// newStandalone creates the resource of a data type without owner
func newStandalone(key string, target conn.Target, opts []Option) *resource {
	o := newOptions(opts)
	r := newResource(key, o)
	r.Access = conn.NewAccess(standaloneChain(r, o), target)
	return r
}

// --------------------------------------------------------------------------
// ListKey
// --------------------------------------------------------------------------

// ListKey is a list of strings
type ListKey struct{ *resource }

// NewList creates a standalone list
func NewList(key string, target conn.Target, opts ...Option) *ListKey {
	return &ListKey{newStandalone(key, target, opts)}
}

// Push appends values and returns the new length
func (l *ListKey) Push(ctx context.Context, values ...any) (int64, error) {
	v, err := l.Do(ctx, "RPUSH", append([]any{l.key}, values...)...)
	return asInt(v), err
}

// PushFront prepends values and returns the new length
func (l *ListKey) PushFront(ctx context.Context, values ...any) (int64, error) {
	v, err := l.Do(ctx, "LPUSH", append([]any{l.key}, values...)...)
	return asInt(v), err
}

// Pop removes and returns the first element
func (l *ListKey) Pop(ctx context.Context) (string, bool, error) {
	v, err := l.Do(ctx, "LPOP", l.key)
	return asString(v, err)
}

// Range returns the elements from start to stop (inclusive, negative indices count from the end)
func (l *ListKey) Range(ctx context.Context, start, stop int64) ([]string, error) {
	v, err := l.Do(ctx, "LRANGE", l.key, start, stop)
	return asStrings(v), err
}

// Len returns the length of the list
func (l *ListKey) Len(ctx context.Context) (int64, error) {
	v, err := l.Do(ctx, "LLEN", l.key)
	return asInt(v), err
}

// --------------------------------------------------------------------------
// HashKey
// --------------------------------------------------------------------------

// HashKey is a map of string fields
type HashKey struct{ *resource }

// NewHash creates a standalone hash
func NewHash(key string, target conn.Target, opts ...Option) *HashKey {
	return &HashKey{newStandalone(key, target, opts)}
}

// Set sets a field and reports whether it is new
func (h *HashKey) Set(ctx context.Context, field string, value any) (bool, error) {
	v, err := h.Do(ctx, "HSET", h.key, field, value)
	return asInt(v) == 1, err
}

// Get returns a field
func (h *HashKey) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := h.Do(ctx, "HGET", h.key, field)
	return asString(v, err)
}

// GetAll returns all fields
func (h *HashKey) GetAll(ctx context.Context) (map[string]string, error) {
	v, err := h.Do(ctx, "HGETALL", h.key)
	return asMap(v), err
}

// Remove deletes fields and returns how many existed
func (h *HashKey) Remove(ctx context.Context, fields ...string) (int64, error) {
	args := []any{h.key}
	for _, f := range fields {
		args = append(args, f)
	}
	v, err := h.Do(ctx, "HDEL", args...)
	return asInt(v), err
}

// IncrBy adds delta to an integer field
func (h *HashKey) IncrBy(ctx context.Context, field string, delta int64) (int64, error) {
	v, err := h.Do(ctx, "HINCRBY", h.key, field, delta)
	return asInt(v), err
}

// Len returns the number of fields
func (h *HashKey) Len(ctx context.Context) (int64, error) {
	v, err := h.Do(ctx, "HLEN", h.key)
	return asInt(v), err
}

// --------------------------------------------------------------------------
// SetKey
// --------------------------------------------------------------------------

// SetKey is an unordered set of strings
type SetKey struct{ *resource }

// NewSet creates a standalone set
func NewSet(key string, target conn.Target, opts ...Option) *SetKey {
	return &SetKey{newStandalone(key, target, opts)}
}

// Add adds members and returns how many were new
func (s *SetKey) Add(ctx context.Context, members ...any) (int64, error) {
	v, err := s.Do(ctx, "SADD", append([]any{s.key}, members...)...)
	return asInt(v), err
}

// Remove removes members and returns how many existed
func (s *SetKey) Remove(ctx context.Context, members ...any) (int64, error) {
	v, err := s.Do(ctx, "SREM", append([]any{s.key}, members...)...)
	return asInt(v), err
}

// Contains reports whether member is in the set
func (s *SetKey) Contains(ctx context.Context, member any) (bool, error) {
	v, err := s.Do(ctx, "SISMEMBER", s.key, member)
	return asInt(v) == 1, err
}

// Members returns all members
func (s *SetKey) Members(ctx context.Context) ([]string, error) {
	v, err := s.Do(ctx, "SMEMBERS", s.key)
	return asStrings(v), err
}

// Len returns the number of members
func (s *SetKey) Len(ctx context.Context) (int64, error) {
	v, err := s.Do(ctx, "SCARD", s.key)
	return asInt(v), err
}

// --------------------------------------------------------------------------
// SortedSetKey
// --------------------------------------------------------------------------

// Member is an element of a sorted set
type Member struct {
	Name  string
	Score float64
}

// SortedSetKey is a set of strings ordered by score
type SortedSetKey struct{ *resource }

// NewSortedSet creates a standalone sorted set
func NewSortedSet(key string, target conn.Target, opts ...Option) *SortedSetKey {
	return &SortedSetKey{newStandalone(key, target, opts)}
}

// Add sets the score of members and returns how many were new
func (z *SortedSetKey) Add(ctx context.Context, members ...Member) (int64, error) {
	args := []any{z.key}
	for _, m := range members {
		args = append(args, m.Score, m.Name)
	}
	v, err := z.Do(ctx, "ZADD", args...)
	return asInt(v), err
}

// IncrBy adds delta to the score of member and returns the new score
func (z *SortedSetKey) IncrBy(ctx context.Context, member string, delta float64) (float64, error) {
	v, err := z.Do(ctx, "ZINCRBY", z.key, delta, member)
	return asFloat(v), err
}

// Score returns the score of member
func (z *SortedSetKey) Score(ctx context.Context, member string) (float64, bool, error) {
	v, err := z.Do(ctx, "ZSCORE", z.key, member)
	return asFloat(v), v != nil && err == nil, err
}

// Remove removes members and returns how many existed
func (z *SortedSetKey) Remove(ctx context.Context, members ...any) (int64, error) {
	v, err := z.Do(ctx, "ZREM", append([]any{z.key}, members...)...)
	return asInt(v), err
}

// Range returns the members from start to stop by ascending score
func (z *SortedSetKey) Range(ctx context.Context, start, stop int64) ([]string, error) {
	v, err := z.Do(ctx, "ZRANGE", z.key, start, stop)
	return asStrings(v), err
}

// RangeWithScores is Range including the scores
func (z *SortedSetKey) RangeWithScores(ctx context.Context, start, stop int64) ([]Member, error) {
	v, err := z.Do(ctx, "ZRANGE", z.key, start, stop, "WITHSCORES")
	items := asStrings(v)
	out := make([]Member, 0, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		out = append(out, Member{Name: items[i], Score: asFloat(items[i+1])})
	}
	return out, err
}

// Len returns the number of members
func (z *SortedSetKey) Len(ctx context.Context) (int64, error) {
	v, err := z.Do(ctx, "ZCARD", z.key)
	return asInt(v), err
}

// --------------------------------------------------------------------------
// Counter
// --------------------------------------------------------------------------

// Counter is an integer stored as string
type Counter struct{ *resource }

// NewCounter creates a standalone counter
func NewCounter(key string, target conn.Target, opts ...Option) *Counter {
	return &Counter{newStandalone(key, target, opts)}
}

// Incr adds delta and returns the new value
func (c *Counter) Incr(ctx context.Context, delta int64) (int64, error) {
	v, err := c.Do(ctx, "INCRBY", c.key, delta)
	return asInt(v), err
}

// Get returns the current value (0 if unset)
func (c *Counter) Get(ctx context.Context) (int64, error) {
	v, err := c.Do(ctx, "GET", c.key)
	return asInt(v), err
}
