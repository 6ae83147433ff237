// Package cmd implements the command-line interface of rkv. It provides a
// hierarchical command structure with operations for running the server and
// interacting with any supported store as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for store operations (get, set, hset, lrange, ...), atomic
//     units (tx), batches (pipe) and a performance test (perf)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the rkv server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Client commands select their store with --target (rkv+tcp://, rkv+unix://,
// rkv+http://, redis:// or mem://). Every flag can also be set as an
// environment variable RKV_<FLAG> or in a .env file.
//
// See rkv -help for a list of all commands.
package cmd
