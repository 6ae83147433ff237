// Package rpc provides the remote access layer of rkv. It carries store
// commands, atomic units and batches between clients and the node that owns
// a shard.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: A store.IConn over the transports, registered for the rkv+tcp,
//     rkv+unix and rkv+http target schemes.
//
//   - server: The RPC server owning the shards of a node, memory or raft replicated.
package rpc
