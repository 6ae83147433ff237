// Package base contains the transport logic shared by the stream transports
// (tcp and unix). The protocol specific parts, dialing, listening and socket
// options, are provided by an IClientConnector or IServerConnector.
//
// Wire format: every frame is a fixed header (shard id, request id, payload
// length) followed by the serialized message. Header and payload are written
// with one net.Buffers write.
//
// Client:
//
//   - opens ConnectionsPerEndpoint connections to every endpoint and picks
//     them round robin
//   - correlates responses by request id (xsync map of request id to a
//     response channel), so many requests share one connection
//   - Send returns when the response arrives or the context is done
//   - a broken connection is re-dialed with jittered exponential backoff
//     (go-retry, RetryCount attempts). Requests that were in flight fail with
//     an error and are never written again: an atomic unit that reached the
//     server must not be applied twice.
//
// Server:
//
//   - one reader goroutine per connection, at most WorkersPerConn requests of
//     a connection are handled concurrently
//   - read buffers come from a sync.Pool of BufferSize buffers
//   - Close stops the listener and closes open connections, Listen returns nil
package base
