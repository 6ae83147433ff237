package redisstore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

var log = logger.GetLogger("store")

// Schemes handled by this package
const (
	Scheme    = "redis"
	SchemeTLS = "rediss"
)

// clients holds one pooled client per normalized target
var clients = xsync.NewMapOf[string, *redis.Client]()

func init() {
	store.Register(Scheme, Open)
	store.Register(SchemeTLS, Open)
}

// Open is the store.Factory for redis targets. All connections of a target
// share one client (and its pool), every connection is an exclusive checkout
// of that pool which is returned on Close.
func Open(_ context.Context, target string) (store.IConn, error) {
	if _, _, err := store.CheckScheme(target, Scheme, SchemeTLS); err != nil {
		return nil, err
	}
	client, err := Client(target)
	if err != nil {
		return nil, err
	}
	return NewConn(client.Conn(), target), nil
}

// Client returns the shared client of a normalized target, creating it on first use
func Client(target string) (*redis.Client, error) {
	if c, ok := clients.Load(target); ok {
		return c, nil
	}
	opts, err := redis.ParseURL(target)
	if err != nil {
		return nil, store.Errorf(store.RetCInvalidOperation, "invalid redis target %s: %v", store.Redact(target), err)
	}
	c, loaded := clients.LoadOrStore(target, redis.NewClient(opts))
	if !loaded {
		log.Infof("created redis client for %s (db %d, pool size %d)", store.Redact(target), opts.DB, opts.PoolSize)
	}
	return c, nil
}

// CloseClients closes all shared clients
func CloseClients() error {
	var errs []error
	clients.Range(func(target string, c *redis.Client) bool {
		clients.Delete(target)
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// NewConn creates a connection on a checked out redis connection
func NewConn(rc *redis.Conn, target string) store.IConn {
	return &conn{rc: rc, target: target}
}

// conn implements store.IConn on top of a go-redis connection
type conn struct {
	rc     *redis.Conn
	target string
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IConn)
// --------------------------------------------------------------------------

func (c *conn) Do(ctx context.Context, name string, args ...any) (any, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	cmd := redis.NewCmd(ctx, commandArgs(name, args)...)
	_ = c.rc.Process(ctx, cmd)
	return reply(cmd)
}

func (c *conn) Atomic(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return c.multi(ctx, fn, c.rc.TxPipelined)
}

func (c *conn) Batch(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return c.multi(ctx, fn, c.rc.Pipelined)
}

func (c *conn) Target() string {
	return c.target
}

func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rc.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// multi runs fn against a go-redis pipeline (plain or MULTI/EXEC)
func (c *conn) multi(ctx context.Context, fn func(store.Commander) error, pipelined func(context.Context, func(redis.Pipeliner) error) ([]redis.Cmder, error)) ([]store.Reply, error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}

	var queued []*redis.Cmd
	_, err := pipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&pipeCommander{pipe: pipe, queued: &queued})
	})
	if err != nil && failed(err) {
		return nil, err
	}

	replies := make([]store.Reply, len(queued))
	for i, cmd := range queued {
		v, err := reply(cmd)
		replies[i] = store.Reply{Value: v, Err: err}
	}
	return replies, nil
}

// pipeCommander queues commands on a pipeline
type pipeCommander struct {
	pipe   redis.Pipeliner
	queued *[]*redis.Cmd
}

func (p *pipeCommander) Do(ctx context.Context, name string, args ...any) (any, error) {
	cmd := redis.NewCmd(ctx, commandArgs(name, args)...)
	if err := p.pipe.Process(ctx, cmd); err != nil {
		return nil, err
	}
	*p.queued = append(*p.queued, cmd)
	return store.Queued, nil
}

// failed reports whether err is a failure of the pipeline itself rather than
// the error reply of a single command (which go-redis also returns)
func failed(err error) bool {
	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return true // network, context, ...
	}
	return strings.HasPrefix(err.Error(), "EXECABORT")
}

// commandArgs converts a command to the go-redis argument list
func commandArgs(name string, args []any) []any {
	out := make([]any, 0, len(args)+1)
	out = append(out, strings.ToLower(name))
	for _, a := range store.Args(args...) {
		out = append(out, a)
	}
	return out
}

// reply converts a go-redis reply to the store reply types
func reply(cmd *redis.Cmd) (any, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return convert(v), nil
}

// convert maps RESP2/RESP3 values to nil, string, int64 or []any
func convert(v any) any {
	switch v := v.(type) {
	case nil, string, int64:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case float64:
		return store.Arg(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = convert(item)
		}
		return out
	case map[any]any:
		out := make([]any, 0, len(v)*2)
		for k, item := range v {
			out = append(out, convert(k), convert(item))
		}
		return out
	default:
		return store.Arg(v)
	}
}
