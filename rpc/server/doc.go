// Package server implements the RPC server of rkv. It owns the shards of one
// node and executes the commands of incoming messages against them.
//
// Key Components:
//
//   - IRPCServerAdapter: Translates a request message into calls on a store.IConn
//     (single command, atomic unit or batch) and builds the response message.
//
//   - NewConnServerAdapter: The adapter used by the server. Per-command errors are
//     returned inside the results, errors of the unit itself as an error response.
//
//   - NewRPCServer: Creates a server with the given transport and serializer.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeMemory},
//	    {ShardID: 200, Type: common.ShardTypeRaft},
//	  },
//	  TimeoutSecond: 5,
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080", WorkersPerConn: 16},
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// A shard is one command engine holding any number of logical databases. The
// database of a request is taken from the message, connections per database are
// created on first use. Two shard types can be mixed within a single server:
//
//   - ShardTypeMemory: An in-process memstore engine, suitable for single-node
//     deployments or development environments.
//
//   - ShardTypeRaft: A memstore engine replicated with Raft, providing strong
//     consistency across multiple nodes. The RAFT configuration (RTTMillisecond,
//     SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and ClusterMembers)
//     must be set when this type is used.
//
// If MetricsEndpoint is set, request counters and latencies are served in the
// Prometheus text format on /metrics.
package server
