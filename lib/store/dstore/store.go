package dstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/lib/store/dstore/internal"
	"github.com/ValentinKolb/rkv/lib/store/memstore"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// connImpl is the store.IConn implementation of a raft replicated shard.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type connImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	db      int
	target  string
	cs      *client.Session
	timeout time.Duration
	closed  atomic.Bool
}

// NewConn creates a connection to a logical database of a raft replicated shard.
// Writes are proposed to the cluster and applied by every replica, reads are linearizable (SyncRead).
func NewConn(nh *dragonboat.NodeHost, shardID uint64, db int, target string, timeout time.Duration) store.IConn {
	return &connImpl{
		nh:      nh,
		shardID: shardID,
		db:      db,
		target:  target,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// propose serializes a command, sends it via SyncPropose and decodes the replies.
func (s *connImpl) propose(ctx context.Context, mode internal.Mode, cmds []store.Command) ([]store.Reply, error) {
	cmd := internal.Command{
		Mode: mode,
		DB:   uint32(s.db),
		Now:  time.Now().UnixMilli(),
		Cmds: cmds,
	}
	data := cmd.Serialize()

	for i := 0; i < retries; i++ {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncPropose(pctx, s.cs, data)
		cancel()

		// Check for system busy errors, the proposal was not accepted
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return internal.DecodeReplies(res.Data)
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read queries the state machine with a read-only command.
//
// This function uses the SyncRead function (dragonboat), so the node processing the read
// has applied all committed log entries before. If the read operation fails due to a system busy error,
// the function retries up to 5 times.
func (s *connImpl) read(ctx context.Context, c store.Command) (any, error) {
	for i := 0; i < retries; i++ {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncRead(rctx, s.shardID, internal.Query{DB: s.db, Cmd: c})
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return nil, se
			}
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}

		qr, ok := res.(internal.QueryResult)
		if !ok {
			return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("unexpected type: received %T, expected %T", res, qr))
		}
		return qr.Value, qr.Err
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *connImpl) Do(ctx context.Context, name string, args ...any) (any, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	c := store.NewCommand(name, args...)
	if memstore.IsReadOnly(c.Name) {
		return s.read(ctx, c)
	}
	replies, err := s.propose(ctx, internal.ModeSingle, []store.Command{c})
	if err != nil {
		return nil, err
	}
	if len(replies) != 1 {
		return nil, store.Errorf(store.RetCInternalError, "expected 1 reply, got %d", len(replies))
	}
	return replies[0].Value, replies[0].Err
}

func (s *connImpl) Atomic(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return s.multi(ctx, internal.ModeAtomic, fn)
}

func (s *connImpl) Batch(ctx context.Context, fn func(store.Commander) error) ([]store.Reply, error) {
	return s.multi(ctx, internal.ModeBatch, fn)
}

func (s *connImpl) Target() string {
	return s.target
}

func (s *connImpl) Close() error {
	s.closed.Store(true)
	return nil
}

// multi queues all commands of fn and proposes them as one raft entry
func (s *connImpl) multi(ctx context.Context, mode internal.Mode, fn func(store.Commander) error) ([]store.Reply, error) {
	if s.closed.Load() {
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
	return s.propose(ctx, mode, cmds)
}
