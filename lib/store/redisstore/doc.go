// Package redisstore connects the store contracts to redis servers through
// github.com/redis/go-redis/v9.
//
// Targets use the go-redis URL format, the logical database is the path:
//
//	redis://[user:password@]host:port/<db>[?options]
//	rediss://...  (TLS)
//
// All connections of one target share a single go-redis client and its pool.
// Each connection returned by Open is an exclusive checkout of that pool
// (redis.Client.Conn), Close returns it. Atomic scopes are sent with
// MULTI/EXEC (TxPipelined), batch scopes as plain pipelines (Pipelined).
package redisstore
