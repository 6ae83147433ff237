package conn

import (
	"context"
	"sync"

	"github.com/ValentinKolb/rkv/lib/store"
)

// scope is an open atomic or batch block. All commands issued inside the block
// (including nested, joined blocks) go through the scope's commander and are
// recorded in issue order.
//
// A queued scope forwards commands to the commander of the connection's
// atomic/batch primitive, the recorded replies are the placeholders. A
// degraded scope (fallback) executes every command immediately on the
// connection and records the real reply or error.
type scope struct {
	kind     Kind
	target   string
	degraded bool
	conn     *scopedConn

	mu      sync.Mutex
	inner   store.Commander
	replies []store.Reply
	closed  bool
}

// newScope creates a new scope on base. Queued scopes are bound to the
// commander of the primitive once it is opened, degraded scopes use base.
func newScope(kind Kind, target string, base store.IConn, degraded bool) *scope {
	s := &scope{kind: kind, target: target, degraded: degraded}
	s.conn = &scopedConn{s: s, base: base}
	if degraded {
		s.inner = base
	}
	return s
}

func (s *scope) bind(inner store.Commander) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner = inner
}

// do issues a single command and records its reply
func (s *scope) do(ctx context.Context, name string, args ...any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.inner == nil {
		return nil, ErrScopeClosed
	}

	v, err := s.inner.Do(ctx, name, args...)
	s.replies = append(s.replies, store.Reply{Value: v, Err: err})

	// Individual command proxy: errors are captured, not raised
	if s.degraded {
		if err != nil {
			return nil, nil
		}
		return v, nil
	}
	return v, err
}

// mark returns the number of recorded replies
func (s *scope) mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// since returns a copy of the replies recorded after mark
func (s *scope) since(mark int) []store.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Reply(nil), s.replies[mark:]...)
}

func (s *scope) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// join runs block inside the already open scope s. The result holds the
// replies of the commands the block issued.
func join(ctx context.Context, s *scope, block Block) (*MultiResult, error) {
	m := s.mark()
	if err := block(ctx, s.conn); err != nil {
		return nil, err
	}
	return newMultiResult(s.since(m)), nil
}

// --------------------------------------------------------------------------
// Scoped Connection
// --------------------------------------------------------------------------

// scopedConn is the connection yielded to blocks of an open scope. The same
// instance is yielded to every nested block joining the scope.
type scopedConn struct {
	s    *scope
	base store.IConn
}

func (c *scopedConn) Do(ctx context.Context, name string, args ...any) (any, error) {
	return c.s.do(ctx, name, args...)
}

// Atomic joins the open scope
func (c *scopedConn) Atomic(ctx context.Context, fn func(c store.Commander) error) ([]store.Reply, error) {
	return c.nested(fn)
}

// Batch joins the open scope
func (c *scopedConn) Batch(ctx context.Context, fn func(c store.Commander) error) ([]store.Reply, error) {
	return c.nested(fn)
}

func (c *scopedConn) nested(fn func(c store.Commander) error) ([]store.Reply, error) {
	m := c.s.mark()
	if err := fn(c); err != nil {
		return nil, err
	}
	return c.s.since(m), nil
}

func (c *scopedConn) Target() string {
	return c.base.Target()
}

// Close is a no-op, the connection is released when the scope ends
func (c *scopedConn) Close() error {
	return nil
}
