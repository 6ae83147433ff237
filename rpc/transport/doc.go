// Package transport defines the transport contracts of the rkv RPC layer.
// A transport moves opaque serialized messages between a client and the
// server shard selected by its id. It knows nothing about commands or scopes.
//
// Key Components:
//
//   - IRPCClientTransport: connects to the configured endpoints and sends a
//     request to a shard. Send honours the context deadline. A broken
//     connection is re-dialed, a request is never sent twice (an atomic unit
//     must not be applied twice).
//
//   - IRPCServerTransport: listens on the configured endpoint and hands every
//     request to the registered ServerHandleFunc.
//
// Implementations live in the subpackages tcp and unix (framed messages over
// a shared base implementation) and http.
package transport
