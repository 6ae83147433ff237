package server

import (
	"context"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/rpc/common"
)

// NewConnServerAdapter creates the adapter executing command messages on a store.IConn
func NewConnServerAdapter() IRPCServerAdapter {
	return &connServerAdapterImpl{}
}

type connServerAdapterImpl struct{}

func (adapter *connServerAdapterImpl) Handle(ctx context.Context, req *common.Message, conn store.IConn) *common.Message {
	// Check for nil connection
	if conn == nil {
		return common.NewErrorResponse(store.NewError(store.RetCInternalError, "handler: connection is nil"))
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTCommand:
		if len(req.Commands) != 1 {
			return common.NewErrorResponse(store.Errorf(store.RetCInvalidOperation, "command message with %d commands", len(req.Commands)))
		}
		cmd := req.Commands[0]
		v, err := conn.Do(ctx, cmd.Name, args(cmd.Args)...)
		return common.NewResponse(common.MsgTCommand, []store.Reply{{Value: v, Err: err}})

	case common.MsgTAtomic:
		replies, err := conn.Atomic(ctx, queue(ctx, req.Commands))
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return common.NewResponse(common.MsgTAtomic, replies)

	case common.MsgTBatch:
		replies, err := conn.Batch(ctx, queue(ctx, req.Commands))
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return common.NewResponse(common.MsgTBatch, replies)

	default:
		return common.NewErrorResponse(
			store.Errorf(store.RetCUnsupportedOperation, "unsupported message type: %s", req.MsgType),
		)
	}
}

// queue returns an Atomic/Batch block issuing the commands in order
func queue(ctx context.Context, cmds []common.Command) func(store.Commander) error {
	return func(c store.Commander) error {
		for _, cmd := range cmds {
			if _, err := c.Do(ctx, cmd.Name, args(cmd.Args)...); err != nil {
				return err
			}
		}
		return nil
	}
}

func args(in []string) []any {
	out := make([]any, len(in))
	for i, a := range in {
		out[i] = a
	}
	return out
}
