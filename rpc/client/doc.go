// Package client implements the store.IConn interface on top of the RPC
// transports, so a remote rkv shard can be used like any other store backend.
//
// Importing the package registers the target schemes rkv+tcp, rkv+unix and
// rkv+http with the store registry:
//
//	rkv+tcp://host:port/<db>?shard=100
//	rkv+unix://local/<db>?shard=100&socket=/tmp/rkv.sock
//	rkv+http://host:port/<db>?shard=100
//
// Optional query parameters:
//
//   - serializer: json, gob or binary (default)
//   - timeout: request timeout in seconds
//   - conns: connections per endpoint
//   - endpoints: comma separated list of additional endpoints (tcp and http)
//
// All other client settings are taken from SetDefaultConfig.
//
// Usage Example:
//
//	import _ "github.com/ValentinKolb/rkv/rpc/client"
//
//	target := conn.MustTarget("rkv+tcp://localhost:8080?shard=100", 0)
//	access := conn.NewAccess(conn.DefaultChain(nil, nil), target)
//
//	res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
//	  _, err := c.Do(ctx, "INCR", "counter")
//	  return err
//	})
//
// A transport is shared by all connections to the same endpoints, closing a
// connection does not close it (see CloseTransports). Single commands, atomic
// units and batches are each sent as one message and never resent, the
// transport only re-dials broken connections.
//
// Thread Safety:
//
//	Connections and transports are safe for concurrent use.
package client
