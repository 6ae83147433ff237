package client

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/rpc/common"
	"github.com/ValentinKolb/rkv/rpc/serializer"
	"github.com/ValentinKolb/rkv/rpc/transport"
)

// Open is the store.Factory for rkv targets. The transport of the target is
// shared by all connections to the same endpoints, a connection only holds
// the shard, the logical database and the serializer.
func Open(_ context.Context, target string) (store.IConn, error) {
	opts, err := ParseOptions(target)
	if err != nil {
		return nil, err
	}
	t, err := transportFor(opts)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "connect %s: %v", store.Redact(target), err)
	}
	s, _ := serializer.ByName(opts.Serializer)
	return NewConn(opts.ShardID, opts.DB, target, t, s), nil
}

// NewConn creates a connection to a logical database of a shard on a connected transport
//
// Usage:
//
//	t := tcp.NewTCPClientTransport()
//	if err := t.Connect(config); err != nil {
//		panic(err)
//	}
//	c := client.NewConn(100, 0, "rkv+tcp://localhost:8080/0?shard=100", t, serializer.NewBinarySerializer())
func NewConn(shardId uint64, db int, target string, t transport.IRPCClientTransport, s serializer.IRPCSerializer) store.IConn {
	return &rpcConn{
		shardId:    shardId,
		db:         db,
		target:     target,
		transport:  t,
		serializer: s,
	}
}

type rpcConn struct {
	shardId    uint64
	db         int
	target     string
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	closed     atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IConn)
// --------------------------------------------------------------------------

func (c *rpcConn) Do(ctx context.Context, name string, args ...any) (any, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	req := common.NewCommandRequest(c.db, store.NewCommand(name, args...))
	resp, err := invoke(ctx, c.shardId, req, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != 1 {
		return nil, store.Errorf(store.RetCInternalError, "expected 1 result, got %d", len(resp.Results))
	}
	r := resp.Results[0].Reply()
	return r.Value, r.Err
}

func (c *rpcConn) Atomic(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return c.multi(ctx, fn, common.NewAtomicRequest)
}

func (c *rpcConn) Batch(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return c.multi(ctx, fn, common.NewBatchRequest)
}

func (c *rpcConn) Target() string {
	return c.target
}

// Close only marks the connection as closed, the transport stays shared
func (c *rpcConn) Close() error {
	c.closed.Store(true)
	return nil
}

// multi queues the commands of fn and sends them as a single message
func (c *rpcConn) multi(ctx context.Context, fn func(store.Commander) error, request func(int, []store.Command) *common.Message) ([]store.Reply, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	q := &store.CommandQueue{}
	if err := fn(q); err != nil {
		return nil, err
	}
	cmds := q.Commands()
	if len(cmds) == 0 {
		return []store.Reply{}, nil
	}

	resp, err := invoke(ctx, c.shardId, request(c.db, cmds), c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(cmds) {
		return nil, store.Errorf(store.RetCInternalError, "expected %d results, got %d", len(cmds), len(resp.Results))
	}
	return resp.Replies(), nil
}
